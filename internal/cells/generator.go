package cells

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/manabu/internal/generation"
	"github.com/hyperjump/manabu/internal/models"
)

// DefaultConcurrency bounds parallel cell generation in GenerateAll.
const DefaultConcurrency = 4

// ContextSource supplies retrieved context for a topic.
type ContextSource interface {
	Retrieve(ctx context.Context, topic string) (string, error)
}

// Generator turns cell prompts into content.
type Generator struct {
	gen         generation.Generator
	context     ContextSource
	concurrency int
	logger      *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithConcurrency sets how many cells GenerateAll works on at once.
func WithConcurrency(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGenerator creates a cell content generator.
func NewGenerator(gen generation.Generator, source ContextSource, opts ...Option) *Generator {
	g := &Generator{gen: gen, context: source, concurrency: DefaultConcurrency, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces content for one cell prompt with the template of typ and the given context.
func (g *Generator) Generate(ctx context.Context, topic, prompt string, typ models.CellType, contextText string) (string, error) {
	tpl := TemplateFor(typ)
	out, err := g.gen.Generate(ctx, generation.Request{System: tpl.System, User: userPrompt(topic, prompt, contextText)})
	if err != nil {
		return "", fmt.Errorf("generate %s cell: %w", typ, err)
	}
	if tpl.Code {
		out = StripCodeFences(out)
	}
	return out, nil
}

// Content retrieves context for topic and generates one cell.
func (g *Generator) Content(ctx context.Context, topic, prompt string, typ models.CellType) (string, error) {
	text, err := g.context.Retrieve(ctx, topic)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}
	return g.Generate(ctx, topic, prompt, typ, text)
}

// GenerateAll generates every cell of s using the structure name as topic and one shared
// context. Cells are generated concurrently up to the configured bound; results keep their
// positions. The input is not modified. On error no partial structure is returned.
func (g *Generator) GenerateAll(ctx context.Context, s models.NotebookStructure) (models.NotebookStructure, error) {
	text, err := g.context.Retrieve(ctx, s.Name)
	if err != nil {
		return models.NotebookStructure{}, fmt.Errorf("retrieve context: %w", err)
	}
	out := s.Clone()

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i := range out.Cells {
		cell := &out.Cells[i]
		eg.Go(func() error {
			content, err := g.Generate(ctx, s.Name, cell.Content, cell.Type, text)
			if err != nil {
				return fmt.Errorf("cell %d: %w", i, err)
			}
			cell.Content = content
			cell.Generated = true
			cell.Loading = false
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return models.NotebookStructure{}, err
	}
	g.logger.Debug("cells generated", zap.String("notebook", s.Name), zap.Int("cells", len(out.Cells)))
	return out, nil
}

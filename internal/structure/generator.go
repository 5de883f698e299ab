package structure

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/generation"
	"github.com/hyperjump/manabu/internal/models"
)

// ContextSource supplies retrieved context for a topic.
type ContextSource interface {
	Retrieve(ctx context.Context, topic string) (string, error)
}

// Result is a validated or fallback structure.
type Result struct {
	Structure models.NotebookStructure `json:"structure"`
	Coercions []Coercion               `json:"coercions,omitempty"`
	Attempts  int                      `json:"attempts"`
	// Fallback is set when every attempt failed; Reason then carries the last failure.
	Fallback bool  `json:"fallback"`
	Reason   error `json:"-"`
}

// Fallback returns the minimal structure for topic: the default name and one default-type
// cell with the given prompt.
func Fallback(topic, prompt string) models.NotebookStructure {
	return models.NotebookStructure{
		Name:  DefaultName(topic),
		Cells: []models.Cell{{Type: models.DefaultCellType, Content: prompt}},
	}
}

// Generator drafts notebook structures.
type Generator struct {
	gen     generation.Generator
	context ContextSource
	policy  RetryPolicy
	logger  *zap.Logger
}

// Option configures a Generator or TopicsGenerator.
type Option func(*options)

type options struct {
	policy RetryPolicy
	logger *zap.Logger
}

// WithMaxAttempts sets the retry bound.
func WithMaxAttempts(n int) Option {
	return func(o *options) { o.policy.MaxAttempts = n }
}

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{policy: RetryPolicy{MaxAttempts: DefaultMaxAttempts}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewGenerator creates a structure generator.
func NewGenerator(gen generation.Generator, source ContextSource, opts ...Option) *Generator {
	o := buildOptions(opts)
	return &Generator{gen: gen, context: source, policy: o.policy, logger: o.logger}
}

// Generate retrieves context for topic and drafts a structure. Malformed replies are retried
// up to the policy bound, after which the fallback structure is returned. Only a context
// retrieval failure is returned as an error.
func (g *Generator) Generate(ctx context.Context, topic string) (*Result, error) {
	text, err := g.context.Retrieve(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	req := generation.Request{System: structureSystemPrompt, User: structureUserPrompt(topic, text), JSON: true}
	return g.draft(ctx, topic, req, IntroPrompt, GenerateErrorPrompt), nil
}

// Refine regenerates a structure from the current one and reviewer feedback.
func (g *Generator) Refine(ctx context.Context, topic, current, feedback string) *Result {
	req := generation.Request{System: refineSystemPrompt, User: refineUserPrompt(topic, current, feedback), JSON: true}
	return g.draft(ctx, topic, req, ImprovedIntroPrompt, RefineErrorPrompt)
}

type validated struct {
	structure models.NotebookStructure
	coercions []Coercion
}

func (g *Generator) draft(ctx context.Context, topic string, req generation.Request, malformedPrompt, errorPrompt string) *Result {
	outcome := Run(ctx, g.policy, func(ctx context.Context, n int) (validated, error) {
		reply, err := g.gen.Generate(ctx, req)
		if err != nil {
			g.logger.Warn("structure generation failed", zap.String("topic", topic), zap.Int("attempt", n), zap.Error(err))
			return validated{}, err
		}
		s, coercions, err := Validate(reply, topic)
		if err != nil {
			g.logger.Warn("structure reply malformed", zap.String("topic", topic), zap.Int("attempt", n), zap.Error(err))
			return validated{}, err
		}
		return validated{structure: s, coercions: coercions}, nil
	})

	if outcome.Exhausted() {
		prompt := errorPrompt
		if errors.Is(outcome.Reason, ErrMalformed) {
			prompt = malformedPrompt
		}
		g.logger.Warn("structure fallback", zap.String("topic", topic), zap.Error(outcome.Reason))
		return &Result{Structure: Fallback(topic, prompt), Attempts: outcome.Attempts, Fallback: true, Reason: outcome.Reason}
	}
	for _, c := range outcome.Value.coercions {
		g.logger.Debug("structure coerced", zap.String("topic", topic), zap.Stringer("coercion", c))
	}
	return &Result{Structure: outcome.Value.structure, Coercions: outcome.Value.coercions, Attempts: outcome.Attempts}
}

// Package retrieval turns a topic into context text drawn from the selected documents.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/embedding"
	"github.com/hyperjump/manabu/internal/storage"
	"github.com/hyperjump/manabu/internal/vector"
)

// NoContext is returned in place of context text when nothing matched.
const NoContext = "None"

// DefaultTopK is the number of chunks joined into a context.
const DefaultTopK = 3

// Passage is one retrieved chunk.
type Passage struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// Retriever composes the embedder, the vector index and the document selection.
type Retriever struct {
	store    storage.DocumentStore
	embedder embedding.Embedder
	index    vector.VectorIndex
	topK     int
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// WithTopK overrides DefaultTopK.
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// New creates a Retriever.
func New(store storage.DocumentStore, embedder embedding.Embedder, index vector.VectorIndex, opts ...Option) *Retriever {
	r := &Retriever{store: store, embedder: embedder, index: index, topK: DefaultTopK, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search returns the topK passages for topic restricted to selected documents, in
// descending relevance. An empty selection yields no passages.
func (r *Retriever) Search(ctx context.Context, topic string, topK int) ([]Passage, error) {
	if topK <= 0 {
		topK = r.topK
	}
	selected, err := r.store.SelectedNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("load selection: %w", err)
	}
	if len(selected) == 0 {
		r.logger.Debug("no documents selected", zap.String("topic", topic))
		return nil, nil
	}
	vec, err := r.embedder.Embed(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("embed topic: %w", err)
	}
	matches, err := r.index.Query(ctx, vec, topK, vector.SourceIn(selected...))
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	passages := make([]Passage, len(matches))
	for i, m := range matches {
		passages[i] = Passage{Text: m.Metadata.Text, Source: m.Metadata.Source, Score: m.Score}
	}
	r.logger.Debug("retrieved passages",
		zap.String("topic", topic),
		zap.Int("selected", len(selected)),
		zap.Int("passages", len(passages)),
	)
	return passages, nil
}

// Retrieve returns the passage texts joined by blank lines, or NoContext when none matched.
func (r *Retriever) Retrieve(ctx context.Context, topic string) (string, error) {
	passages, err := r.Search(ctx, topic, r.topK)
	if err != nil {
		return "", err
	}
	return Join(passages), nil
}

// Join concatenates passage texts with a blank line between them.
func Join(passages []Passage) string {
	if len(passages) == 0 {
		return NoContext
	}
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	return strings.Join(texts, "\n\n")
}

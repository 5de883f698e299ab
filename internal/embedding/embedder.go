// Package embedding maps text to fixed-dimension vectors. The same embedder must be used
// at index time and at query time; implementations are constructed once and shared.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

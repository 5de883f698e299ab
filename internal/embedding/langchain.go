package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/manabu/pkg/utils"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// LangchainEmbedder embeds through a langchaingo embeddings client, used for a local
// Ollama server.
type LangchainEmbedder struct {
	impl       embeddings.Embedder
	dimensions int
}

// NewOllamaEmbedder connects to an Ollama server at serverURL using model.
func NewOllamaEmbedder(serverURL, model string, dimensions int) (*LangchainEmbedder, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	impl, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}
	return NewLangchainEmbedder(impl, dimensions), nil
}

// NewLangchainEmbedder wraps any langchaingo embedder.
func NewLangchainEmbedder(impl embeddings.Embedder, dimensions int) *LangchainEmbedder {
	return &LangchainEmbedder{impl: impl, dimensions: dimensions}
}

// Embed embeds text as a query.
func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := e.check(v); err != nil {
		return nil, err
	}
	utils.NormalizeL2(v)
	return v, nil
}

// EmbedBatch embeds texts as documents.
func (e *LangchainEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vs, err := e.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	for _, v := range vs {
		if err := e.check(v); err != nil {
			return nil, err
		}
		utils.NormalizeL2(v)
	}
	return vs, nil
}

func (e *LangchainEmbedder) check(v []float32) error {
	if e.dimensions > 0 && len(v) != e.dimensions {
		return fmt.Errorf("embedding has %d dimensions, index expects %d", len(v), e.dimensions)
	}
	return nil
}

// Dimensions returns the embedding dimension.
func (e *LangchainEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *LangchainEmbedder) Close() error {
	return nil
}

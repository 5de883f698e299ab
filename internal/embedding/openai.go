package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/manabu/pkg/utils"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

const openAIBatchSize = 64

// OpenAIEmbedder uses the OpenAI embeddings API. The requested dimension is passed to the
// API so vectors match the index dimension.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates an OpenAI embedder. baseURL may be empty for the public API.
func NewOpenAIEmbedder(apiKey, baseURL, model string, dimensions int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key not set")
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embs[0], nil
}

// EmbedBatch splits texts into API-sized batches and sends them concurrently.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for start := 0; start < len(texts); start += openAIBatchSize {
		start := start
		end := min(start+openAIBatchSize, len(texts))
		g.Go(func() error {
			embs, err := e.embed(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], embs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *OpenAIEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      texts,
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		copy(v, d.Embedding)
		utils.NormalizeL2(v)
		out[d.Index] = v
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client needs no teardown.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

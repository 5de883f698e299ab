package embedding

import (
	"fmt"

	"github.com/hyperjump/manabu/internal/config"
	"go.uber.org/zap"
)

// New builds the embedder selected by cfg.Provider, wrapped in an LRU cache.
// Supported providers: "hash", "onnx", "openai", "ollama".
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var (
		base Embedder
		err  error
	)
	switch cfg.Provider {
	case "hash":
		base = NewHashEmbedder(cfg.Dimensions)
	case "onnx", "":
		base, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	case "openai":
		base, err = NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case "ollama":
		base, err = NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("embedding provider %s: %w", cfg.Provider, err)
	}
	if logger != nil {
		logger.Info("embedder ready",
			zap.String("provider", cfg.Provider),
			zap.Int("dimensions", base.Dimensions()),
			zap.Int("cache_size", cfg.CacheSize),
		)
	}
	if cfg.CacheSize <= 0 {
		return base, nil
	}
	return NewCachedEmbedder(base, cfg.CacheSize), nil
}

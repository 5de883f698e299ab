package generation

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/config"
)

// Provider names accepted in configuration.
const (
	ProviderOpenAI          = "openai"
	ProviderLangchainOpenAI = "langchain-openai"
	ProviderOllama          = "ollama"
)

// New builds the configured generator wrapped with rate limiting and a per-call timeout.
func New(cfg config.GenerationConfig, logger *zap.Logger) (Generator, error) {
	var (
		gen Generator
		err error
	)
	switch cfg.Provider {
	case ProviderOpenAI, "":
		gen, err = NewOpenAIGenerator(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case ProviderLangchainOpenAI:
		gen, err = NewLangchainOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case ProviderOllama:
		gen, err = NewOllama(cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown generation provider: %s (supported: openai, langchain-openai, ollama)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("generator ready", zap.String("provider", cfg.Provider), zap.String("model", cfg.Model))
	}
	return WithTimeout(NewRateLimited(gen, cfg.RequestsPerSecond, cfg.Burst, logger), cfg.Timeout), nil
}

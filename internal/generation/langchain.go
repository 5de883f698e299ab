package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainGenerator generates through any langchaingo model.
type LangchainGenerator struct {
	llm llms.Model
}

// NewLangchainGenerator wraps a langchaingo model.
func NewLangchainGenerator(llm llms.Model) *LangchainGenerator {
	return &LangchainGenerator{llm: llm}
}

// NewLangchainOpenAI builds an OpenAI-compatible model through langchaingo, for servers that
// speak the OpenAI protocol at baseURL.
func NewLangchainOpenAI(apiKey, baseURL, model string) (*LangchainGenerator, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(apiKey, "Bearer ")),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	return NewLangchainGenerator(llm), nil
}

// NewOllama builds a model served by a local Ollama instance.
func NewOllama(serverURL, model string) (*LangchainGenerator, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return NewLangchainGenerator(llm), nil
}

// Generate sends the prompts as system and human messages.
func (g *LangchainGenerator) Generate(ctx context.Context, req Request) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.System),
		llms.TextParts(llms.ChatMessageTypeHuman, req.User),
	}
	var opts []llms.CallOption
	if req.JSON {
		opts = append(opts, llms.WithJSONMode())
	}
	resp, err := g.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("generate content: no choices returned")
	}
	return resp.Choices[0].Content, nil
}

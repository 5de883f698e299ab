package structure

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/generation"
)

// TopicsResult is a generated or fallback list of subtopics.
type TopicsResult struct {
	Topics   []string `json:"topics"`
	Attempts int      `json:"attempts"`
	Fallback bool     `json:"fallback"`
	Reason   error    `json:"-"`
}

// FallbackTopics returns "{topic} Part i" for i in 1..count.
func FallbackTopics(topic string, count int) []string {
	topics := make([]string, 0, max(count, 0))
	for i := 1; i <= count; i++ {
		topics = append(topics, fmt.Sprintf("%s Part %d", topic, i))
	}
	return topics
}

// TopicsGenerator splits a main topic into notebook subtopics.
type TopicsGenerator struct {
	gen     generation.Generator
	context ContextSource
	policy  RetryPolicy
	logger  *zap.Logger
}

// NewTopicsGenerator creates a topics generator.
func NewTopicsGenerator(gen generation.Generator, source ContextSource, opts ...Option) *TopicsGenerator {
	o := buildOptions(opts)
	return &TopicsGenerator{gen: gen, context: source, policy: o.policy, logger: o.logger}
}

// Generate drafts count subtopics for topic using retrieved context.
func (t *TopicsGenerator) Generate(ctx context.Context, topic string, count int) (*TopicsResult, error) {
	text, err := t.context.Retrieve(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	req := generation.Request{System: topicsSystemPrompt, User: topicsUserPrompt(topic, count, text), JSON: true}
	return t.draft(ctx, topic, count, req), nil
}

// Refine revises topics according to feedback.
func (t *TopicsGenerator) Refine(ctx context.Context, topic string, topics []string, feedback string, count int) *TopicsResult {
	req := generation.Request{System: refineTopicsSystemPrompt, User: refineTopicsUserPrompt(topics, feedback, count), JSON: true}
	return t.draft(ctx, topic, count, req)
}

func (t *TopicsGenerator) draft(ctx context.Context, topic string, count int, req generation.Request) *TopicsResult {
	outcome := Run(ctx, t.policy, func(ctx context.Context, n int) ([]string, error) {
		reply, err := t.gen.Generate(ctx, req)
		if err != nil {
			t.logger.Warn("topics generation failed", zap.String("topic", topic), zap.Int("attempt", n), zap.Error(err))
			return nil, err
		}
		topics, err := ValidateTopics(reply)
		if err != nil {
			t.logger.Warn("topics reply malformed", zap.String("topic", topic), zap.Int("attempt", n), zap.Error(err))
		}
		return topics, err
	})
	if outcome.Exhausted() {
		t.logger.Warn("topics fallback", zap.String("topic", topic), zap.Error(outcome.Reason))
		return &TopicsResult{Topics: FallbackTopics(topic, count), Attempts: outcome.Attempts, Fallback: true, Reason: outcome.Reason}
	}
	return &TopicsResult{Topics: outcome.Value, Attempts: outcome.Attempts}
}

package generation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimited spaces calls to the wrapped generator with a token bucket.
type RateLimited struct {
	next    Generator
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRateLimited allows rps calls per second with the given burst. A non-positive rps
// disables limiting.
func NewRateLimited(next Generator, rps float64, burst int, logger *zap.Logger) *RateLimited {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst), logger: logger}
}

// Generate waits for a token, then calls the wrapped generator.
func (r *RateLimited) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		r.logger.Debug("generation rate limited", zap.Duration("waited", waited))
	}
	return r.next.Generate(ctx, req)
}

// WithTimeout bounds every call to next by d. A non-positive d returns next unchanged.
func WithTimeout(next Generator, d time.Duration) Generator {
	if d <= 0 {
		return next
	}
	return Func(func(ctx context.Context, req Request) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next.Generate(ctx, req)
	})
}

package structure

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxAttempts is the number of generation calls made before falling back.
const DefaultMaxAttempts = 3

// ErrExhausted is the reason carried by an Outcome whose attempts all failed.
var ErrExhausted = errors.New("retry bound exhausted")

// RetryPolicy re-issues the same attempt, without backoff, until one succeeds or the bound is
// reached.
type RetryPolicy struct {
	MaxAttempts int
}

// Outcome is either a success carrying Value, or exhausted with Reason set.
type Outcome[T any] struct {
	Value    T
	Attempts int
	Reason   error
}

// Exhausted reports whether every attempt failed.
func (o Outcome[T]) Exhausted() bool { return o.Reason != nil }

// Run calls attempt with n = 1, 2, ... until it returns a nil error. A cancelled context ends
// the run early. The last failure is wrapped into an ErrExhausted reason.
func Run[T any](ctx context.Context, p RetryPolicy, attempt func(ctx context.Context, n int) (T, error)) Outcome[T] {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	var last error
	n := 0
	for n < maxAttempts {
		if err := ctx.Err(); err != nil {
			last = err
			break
		}
		n++
		v, err := attempt(ctx, n)
		if err == nil {
			return Outcome[T]{Value: v, Attempts: n}
		}
		last = err
	}
	var zero T
	return Outcome[T]{Value: zero, Attempts: n, Reason: fmt.Errorf("%w after %d attempts: %w", ErrExhausted, n, last)}
}

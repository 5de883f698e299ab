package generation

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned by Scripted once its replies run out and no default is set.
var ErrScriptExhausted = errors.New("scripted generator: no replies left")

// Scripted replays canned replies in order and records every request. It stands in for a
// real service in offline runs and tests.
type Scripted struct {
	mu       sync.Mutex
	replies  []string
	fallback *string
	requests []Request
}

// NewScripted returns a generator replying with replies in order.
func NewScripted(replies ...string) *Scripted {
	return &Scripted{replies: replies}
}

// WithDefault sets the reply used after the scripted replies run out.
func (s *Scripted) WithDefault(reply string) *Scripted {
	s.fallback = &reply
	return s
}

// Generate returns the next reply.
func (s *Scripted) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.replies) > 0 {
		reply := s.replies[0]
		s.replies = s.replies[1:]
		return reply, nil
	}
	if s.fallback != nil {
		return *s.fallback, nil
	}
	return "", ErrScriptExhausted
}

// Requests returns a copy of the requests seen so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

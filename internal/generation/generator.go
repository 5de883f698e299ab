// Package generation wraps the text generation services behind one call contract:
// (system prompt, user prompt, structured mode) -> text.
package generation

import "context"

// Request is a single generation call.
type Request struct {
	System string
	User   string
	// JSON asks the service for a JSON object. The reply is expected, not guaranteed, to parse.
	JSON bool
}

// Generator produces text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

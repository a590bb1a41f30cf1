package providers

import "context"

// Decider is the external text-completion capability consulted for
// interjection verdicts and direct replies. Implementations own their own
// HTTP timeout; callers additionally bound calls via ctx.
type Decider interface {
	// Complete sends a prompt with optional system instructions and returns
	// the raw completion text.
	Complete(ctx context.Context, prompt, system string) (string, error)

	// Name returns the provider identifier (e.g. "openai", "moonshot").
	Name() string
}

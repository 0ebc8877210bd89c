package llm

import "context"

// Client is the interface all completion providers implement.
type Client interface {
	// Chat sends a completion request for the given model and returns the
	// response. One attempt, no internal retries: fallback across models
	// is the Gateway's job.
	Chat(ctx context.Context, model string, req Request) (*ChatResponse, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Purpose identifies the kind of work a completion is for. The gateway
// routes each purpose to a configured model with its own fallback chain.
type Purpose string

const (
	PurposeConversation Purpose = "conversation"
	PurposeTriage       Purpose = "triage"
	PurposeBriefing     Purpose = "briefing"
	PurposeDelegate     Purpose = "delegate"
	PurposeProactive    Purpose = "proactive"
)

// ErrUnavailable is returned (wrapped) when the primary model and every
// fallback for a purpose have failed.
var ErrUnavailable = errors.New("no completion provider available")

// Route is the model chain for one purpose: the primary model, then
// fallbacks tried in order. Model names carry a provider prefix
// ("anthropic/claude-sonnet-4-5", "openrouter/qwen/qwen3-coder").
type Route struct {
	Model     string
	Fallbacks []string
}

// Gateway routes completion requests by purpose across providers, falling
// back through the configured model chain. One attempt per model, first
// success wins.
type Gateway struct {
	anthropic  Client
	openrouter Client
	routes     map[Purpose]Route
	logger     *slog.Logger
}

// NewGateway creates a purpose-routed completion gateway.
func NewGateway(anthropic, openrouter Client, routes map[Purpose]Route, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		anthropic:  anthropic,
		openrouter: openrouter,
		routes:     routes,
		logger:     logger.With("component", "gateway"),
	}
}

// Complete runs a completion for the given purpose, trying the primary
// model and then each fallback in order. Each model gets exactly one
// attempt. If the whole chain fails, the returned error wraps
// [ErrUnavailable] and the last attempt's error.
func (g *Gateway) Complete(ctx context.Context, purpose Purpose, req Request) (*ChatResponse, error) {
	route, ok := g.routes[purpose]
	if !ok || route.Model == "" {
		return nil, fmt.Errorf("no model configured for purpose %q", purpose)
	}

	chain := append([]string{route.Model}, route.Fallbacks...)

	var lastErr error
	for i, name := range chain {
		client, model, err := g.clientFor(name)
		if err != nil {
			g.logger.Warn("skipping model", "model", name, "error", err)
			lastErr = err
			continue
		}

		resp, err := client.Chat(ctx, model, req)
		if err == nil {
			if i > 0 {
				g.logger.Info("fallback model succeeded", "purpose", purpose, "model", name, "attempt", i+1)
			}
			return resp, nil
		}

		lastErr = err
		g.logger.Warn("model attempt failed",
			"purpose", purpose,
			"model", name,
			"attempt", i+1,
			"of", len(chain),
			"error", err,
		)

		// Don't burn through fallbacks when the caller is gone.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w for purpose %q: %v", ErrUnavailable, purpose, lastErr)
}

// clientFor resolves a prefixed model name to a provider client and the
// bare model name the provider expects. "openrouter/" routes to
// OpenRouter with the prefix stripped; everything else goes to Anthropic,
// with an optional "anthropic/" prefix stripped.
func (g *Gateway) clientFor(name string) (Client, string, error) {
	if model, ok := strings.CutPrefix(name, "openrouter/"); ok {
		if g.openrouter == nil {
			return nil, "", fmt.Errorf("model %q requires an OpenRouter API key", name)
		}
		return g.openrouter, model, nil
	}
	model := strings.TrimPrefix(name, "anthropic/")
	if g.anthropic == nil {
		return nil, "", fmt.Errorf("model %q requires an Anthropic API key", name)
	}
	return g.anthropic, model, nil
}

// Ping checks reachability of every configured provider.
func (g *Gateway) Ping(ctx context.Context) error {
	if g.anthropic != nil {
		if err := g.anthropic.Ping(ctx); err != nil {
			return fmt.Errorf("anthropic: %w", err)
		}
	}
	if g.openrouter != nil {
		if err := g.openrouter.Ping(ctx); err != nil {
			return fmt.Errorf("openrouter: %w", err)
		}
	}
	return nil
}

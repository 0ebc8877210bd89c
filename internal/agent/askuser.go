package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hearthd/hearth/internal/tools"
)

// registerAskUser installs the ask_user tool: it lets the model pause a
// task, put a question to the user over the proactive channel, and
// resume with the answer (or a timeout sentinel).
func (a *Agent) registerAskUser() {
	a.registry.Register(&tools.Tool{
		Name: "ask_user",
		Description: "Ask the user a question and wait for their answer before continuing. " +
			"Use when you genuinely need information or a decision only the user has. " +
			"If they don't answer in time you get a timed-out reply — proceed sensibly without them.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "The question to send to the user",
				},
			},
			"required": []string{"prompt"},
		},
		Handler: a.handleAskUser,
	})
}

func (a *Agent) handleAskUser(ctx context.Context, args map[string]any) (any, error) {
	prompt, _ := args["prompt"].(string)
	if prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	s := sessionFrom(ctx)
	if s == nil {
		return nil, fmt.Errorf("ask_user is not available in this context")
	}

	intr, err := s.createInterrupt()
	if err != nil {
		return nil, err
	}
	defer s.clearInterrupt()

	// Deliver immediately, not queued behind the current response.
	if err := a.send(ctx, prompt); err != nil {
		return nil, fmt.Errorf("could not reach the user: %w", err)
	}

	a.logger.Info("awaiting user answer", "chat_id", s.id, "timeout", a.cfg.AskUserTimeout)
	start := time.Now()
	reply := intr.await(ctx, a.cfg.AskUserTimeout)
	a.logger.Info("ask_user resolved", "chat_id", s.id, "waited", time.Since(start).Round(time.Millisecond))

	return map[string]string{"reply": reply}, nil
}

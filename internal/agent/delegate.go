package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hearthd/hearth/internal/llm"
	"github.com/hearthd/hearth/internal/tools"
)

// registerDelegate installs the delegation tool: a nested tool-calling
// loop against the stronger delegate model, with a larger round budget,
// lower temperature, and this tool removed from its schema so it cannot
// recurse.
func (a *Agent) registerDelegate() {
	a.registry.Register(&tools.Tool{
		Name: "delegate",
		Description: "Hand a complex task to the heavy-duty sub-agent running a stronger model. " +
			"Use for: big refactors, multi-file HA config changes, writing new automations, " +
			"debugging complex issues, or anything requiring deep reasoning. " +
			"It has the same tools you do but is slower and more expensive. " +
			"Only delegate when the task genuinely warrants it.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task": map[string]any{
					"type":        "string",
					"description": "Clear description of what the sub-agent should do, with full context",
				},
			},
			"required": []string{"task"},
		},
		Handler: a.handleDelegate,
	})
}

func (a *Agent) handleDelegate(ctx context.Context, args map[string]any) (any, error) {
	task, _ := args["task"].(string)
	if task == "" {
		return nil, fmt.Errorf("task is required")
	}

	a.logger.Info("delegating task", "task", truncate(task, 80))

	msgs := []llm.Message{
		{Role: "system", Content: a.persona.DelegateSystemPrompt(time.Now().In(a.loc))},
		{Role: "user", Content: task},
	}
	schema := a.registry.List("delegate")

	text, _, err := a.runWithTools(ctx, llm.PurposeDelegate, msgs, schema, 0.3, 4096, a.cfg.DelegateRounds)
	if err != nil {
		return nil, err
	}
	if text == "" {
		text = "Done."
	}
	return map[string]string{"delegate_result": text}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

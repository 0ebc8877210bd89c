package tools

import (
	"context"
	"fmt"

	"github.com/hearthd/hearth/internal/alerts"
)

func (r *Registry) registerAlertTools() {
	r.Register(&Tool{
		Name:        "add_custom_alert",
		Description: "Add a new custom monitor that will be checked every 5 minutes.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"entity_id": stringProp(""),
				"condition": map[string]any{
					"type": "string",
					"enum": []string{"above", "below", "equals"},
				},
				"threshold": map[string]any{"type": "number"},
				"message":   stringProp("Message to send when triggered"),
			},
			"required": []string{"entity_id", "condition", "threshold", "message"},
		},
		Handler: r.handleAddCustomAlert,
	})
}

func (r *Registry) handleAddCustomAlert(ctx context.Context, args map[string]any) (any, error) {
	var p struct {
		EntityID  string  `json:"entity_id"`
		Condition string  `json:"condition"`
		Threshold float64 `json:"threshold"`
		Message   string  `json:"message"`
	}
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	if p.EntityID == "" || p.Message == "" {
		return nil, fmt.Errorf("entity_id and message are required")
	}

	rule, err := r.deps.Alerts.Add(p.EntityID, alerts.Condition(p.Condition), p.Threshold, p.Message)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "created", "alert": rule}, nil
}

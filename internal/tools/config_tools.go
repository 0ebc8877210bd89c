package tools

import (
	"context"
	"fmt"
	"strings"
)

func (r *Registry) registerConfigTools() {
	r.Register(&Tool{
		Name:        "read_ha_config",
		Description: "Read a Home Assistant configuration file. Use before editing automations, scripts, etc.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filename": stringProp("e.g. automations.yaml, configuration.yaml, scripts.yaml"),
			},
			"required": []string{"filename"},
		},
		Handler: r.handleReadHAConfig,
	})

	r.Register(&Tool{
		Name: "write_ha_config",
		Description: "Overwrite a Home Assistant configuration file with new content. " +
			"Runs the config validator before saving. Backs up and restores on failure. " +
			"Always read_ha_config first to avoid losing existing content.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filename": stringProp("e.g. automations.yaml"),
				"content":  stringProp("Complete file content to write"),
			},
			"required": []string{"filename", "content"},
		},
		Handler: r.handleWriteHAConfig,
	})

	r.Register(&Tool{
		Name:        "reload_ha_config",
		Description: "Reload HA automations/scripts/scenes after editing. Call after write_ha_config.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"component": map[string]any{
					"type":        "string",
					"enum":        []string{"automation", "script", "scene"},
					"description": "Which component to reload",
				},
			},
			"required": []string{"component"},
		},
		Handler: r.handleReloadHAConfig,
	})
}

func (r *Registry) handleReadHAConfig(ctx context.Context, args map[string]any) (any, error) {
	var p struct {
		Filename string `json:"filename"`
	}
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	content, err := r.deps.HAConfig.Read(p.Filename)
	if err != nil {
		return nil, err
	}
	return map[string]string{"filename": p.Filename, "content": content}, nil
}

func (r *Registry) handleWriteHAConfig(ctx context.Context, args map[string]any) (any, error) {
	var p struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}

	result, err := r.deps.HAConfig.Write(ctx, p.Filename, p.Content)
	if err != nil {
		return nil, err
	}
	if result.Restored {
		return map[string]any{
			"error":    fmt.Sprintf("Validation failed: %s", result.ValidationError),
			"restored": true,
		}, nil
	}
	if result.Unvalidated != "" {
		return map[string]any{
			"status":   "written",
			"filename": p.Filename,
			"note":     fmt.Sprintf("Could not validate: %s", result.Unvalidated),
		}, nil
	}
	return map[string]any{"status": "written", "filename": p.Filename}, nil
}

func (r *Registry) handleReloadHAConfig(ctx context.Context, args map[string]any) (any, error) {
	var p struct {
		Component string `json:"component"`
	}
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	component := strings.TrimSpace(p.Component)
	if component == "" {
		component = "automation"
	}
	if err := r.deps.HA.CallService(ctx, component, "reload", map[string]any{}); err != nil {
		return nil, err
	}
	return map[string]string{"status": "reloaded", "component": component}, nil
}

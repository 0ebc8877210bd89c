// Package tools defines the tools available to the agent: reading and
// controlling Home Assistant, querying the recorder, editing the
// assistant's own files, managing alerts, and the two loop-level tools
// (ask_user, delegate) injected by the agent.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hearthd/hearth/internal/alerts"
	"github.com/hearthd/hearth/internal/haconfig"
	"github.com/hearthd/hearth/internal/homeassistant"
	"github.com/hearthd/hearth/internal/persona"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     func(ctx context.Context, args map[string]any) (any, error)
}

// Deps holds the collaborators the built-in tools act on.
type Deps struct {
	HA       *homeassistant.Client
	Recorder *homeassistant.Recorder
	Persona  *persona.Store
	HAConfig *haconfig.Editor
	Alerts   *alerts.Store
}

// Registry holds the available tools in registration order.
type Registry struct {
	tools  map[string]*Tool
	order  []string
	deps   Deps
	logger *slog.Logger
}

// NewRegistry creates a registry with all built-in tools registered.
// ask_user and delegate are registered later by the agent, which owns
// the machinery they need.
func NewRegistry(deps Deps, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:  make(map[string]*Tool),
		deps:   deps,
		logger: logger.With("component", "tools"),
	}
	r.registerHATools()
	r.registerSelfTools()
	r.registerConfigTools()
	r.registerAlertTools()
	return r
}

// Register adds a tool. Registering the same name twice replaces the
// handler but keeps the original position.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// List returns the tool schemas in registration order, in the OpenAI
// function-declaration shape. Names in exclude are omitted; the delegate
// sub-loop uses this to remove the delegation tool from its own schema.
func (r *Registry) List(exclude ...string) []map[string]any {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	var result []map[string]any
	for _, name := range r.order {
		if skip[name] {
			continue
		}
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Execute runs a tool and returns its result serialized as JSON. It
// never returns an error to the caller: any failure (unknown tool,
// handler error, unserializable result) is converted into an
// {"error": reason} payload so the loop can feed it back to the model
// instead of aborting the conversation.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) string {
	tool := r.tools[name]
	if tool == nil {
		return errorResult(fmt.Sprintf("Unknown tool: %s", name))
	}
	if args == nil {
		args = map[string]any{}
	}

	result, err := tool.Handler(ctx, args)
	if err != nil {
		r.logger.Error("tool failed", "tool", name, "error", err)
		return errorResult(err.Error())
	}

	data, err := json.Marshal(result)
	if err != nil {
		r.logger.Error("tool result not serializable", "tool", name, "error", err)
		return errorResult("result not serializable")
	}
	return string(data)
}

func errorResult(reason string) string {
	data, err := json.Marshal(map[string]string{"error": reason})
	if err != nil {
		return `{"error": "internal error"}`
	}
	return string(data)
}

package tools

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// decodeArgs maps the model's untyped argument map onto a typed
// parameter struct. WeaklyTypedInput tolerates the usual model quirks
// (numbers as strings, floats where ints are expected).
func decodeArgs(args map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func (r *Registry) registerHATools() {
	r.Register(&Tool{
		Name:        "get_state",
		Description: "Get the current state of a single Home Assistant entity.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"entity_id": stringProp("e.g. sensor.attic_temperature"),
			},
			"required": []string{"entity_id"},
		},
		Handler: r.handleGetState,
	})

	r.Register(&Tool{
		Name:        "get_states_by_domain",
		Description: "Get all entity states for a domain (e.g. 'switch', 'sensor', 'light').",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"domain": stringProp("e.g. switch, sensor, light, climate"),
			},
			"required": []string{"domain"},
		},
		Handler: r.handleGetStatesByDomain,
	})

	r.Register(&Tool{
		Name:        "call_service",
		Description: "Call a Home Assistant service to control a device.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"domain":     stringProp("e.g. switch, light, climate"),
				"service":    stringProp("e.g. turn_on, turn_off, set_temperature"),
				"entity_id":  stringProp("Target entity"),
				"extra_data": map[string]any{"type": "object", "description": "Additional service data (optional)"},
			},
			"required": []string{"domain", "service", "entity_id"},
		},
		Handler: r.handleCallService,
	})

	r.Register(&Tool{
		Name:        "get_history",
		Description: "Get recent state history for an entity.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"entity_id": stringProp(""),
				"hours":     map[string]any{"type": "integer", "description": "How many hours back (default 24)"},
			},
			"required": []string{"entity_id"},
		},
		Handler: r.handleGetHistory,
	})

	r.Register(&Tool{
		Name: "search_statistics",
		Description: "Search for available long-term statistic IDs by keyword. " +
			"Use this before get_statistics to discover the correct statistic_id. " +
			"Examples: 'energy', 'spa', 'water', 'cost', 'temperature'.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": stringProp("Keyword to search for"),
			},
			"required": []string{"query"},
		},
		Handler: r.handleSearchStatistics,
	})

	r.Register(&Tool{
		Name: "get_statistics",
		Description: "Fetch long-term statistics from HA's recorder database. " +
			"Use search_statistics first to find the correct statistic_id. " +
			"Returns total usage over the window plus a daily breakdown. " +
			"For 'this month' use hours=672. For 'today' use hours=24. For 'this week' use hours=168.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"statistic_ids": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "List of statistic IDs, e.g. ['sensor.energy_total']",
				},
				"hours": map[string]any{"type": "integer", "description": "How many hours of history to fetch (default 48)"},
			},
			"required": []string{"statistic_ids"},
		},
		Handler: r.handleGetStatistics,
	})

	r.Register(&Tool{
		Name: "search_entities",
		Description: "Search the known entity reference by keyword. " +
			"Use this to find the correct entity_id before calling get_state or call_service. " +
			"Examples: 'temperature', 'spa', 'door', 'energy', 'weather', 'fan'.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": stringProp("Keyword to search for (e.g. 'spa', 'lounge', 'attic')"),
			},
			"required": []string{"query"},
		},
		Handler: r.handleSearchEntities,
	})
}

func (r *Registry) handleGetState(ctx context.Context, args map[string]any) (any, error) {
	var p struct {
		EntityID string `json:"entity_id"`
	}
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	if p.EntityID == "" {
		return nil, fmt.Errorf("entity_id is required")
	}
	return r.deps.HA.GetState(ctx, p.EntityID)
}

func (r *Registry) handleGetStatesByDomain(ctx context.Context, args map[string]any) (any, error) {
	var p struct {
		Domain string `json:"domain"`
	}
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	if p.Domain == "" {
		return nil, fmt.Errorf("domain is required")
	}
	return r.deps.HA.GetStatesByDomain(ctx, p.Domain)
}

func (r *Registry) handleCallService(ctx context.Context, args map[string]any) (any, error) {
	var p struct {
		Domain    string         `json:"domain"`
		Service   string         `json:"service"`
		EntityID  string         `json:"entity_id"`
		ExtraData map[string]any `json:"extra_data"`
	}
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	if p.Domain == "" || p.Service == "" || p.EntityID == "" {
		return nil, fmt.Errorf("domain, service, and entity_id are required")
	}

	data := map[string]any{"entity_id": p.EntityID}
	for k, v := range p.ExtraData {
		data[k] = v
	}
	if err := r.deps.HA.CallService(ctx, p.Domain, p.Service, data); err != nil {
		return nil, err
	}
	return map[string]string{"status": "ok"}, nil
}

func (r *Registry) handleGetHistory(ctx context.Context, args map[string]any) (any, error) {
	var p struct {
		EntityID string `json:"entity_id"`
		Hours    int    `json:"hours"`
	}
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	if p.EntityID == "" {
		return nil, fmt.Errorf("entity_id is required")
	}
	return r.deps.HA.GetHistory(ctx, p.EntityID, p.Hours)
}

func (r *Registry) handleSearchStatistics(ctx context.Context, args map[string]any) (any, error) {
	if r.deps.Recorder == nil {
		return nil, fmt.Errorf("recorder database not configured")
	}
	var p struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	return r.deps.Recorder.SearchStatistics(ctx, p.Query)
}

func (r *Registry) handleGetStatistics(ctx context.Context, args map[string]any) (any, error) {
	if r.deps.Recorder == nil {
		return nil, fmt.Errorf("recorder database not configured")
	}
	var p struct {
		StatisticIDs []string `json:"statistic_ids"`
		Hours        int      `json:"hours"`
	}
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	if len(p.StatisticIDs) == 0 {
		return nil, fmt.Errorf("statistic_ids is required")
	}
	return r.deps.Recorder.GetStatistics(ctx, p.StatisticIDs, p.Hours)
}

func (r *Registry) handleSearchEntities(ctx context.Context, args map[string]any) (any, error) {
	var p struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}

	matches, err := r.deps.Persona.SearchEntities(p.Query)
	if err != nil {
		return map[string]any{"results": []string{}, "note": err.Error()}, nil
	}
	if len(matches) == 0 {
		return map[string]any{"results": []string{}, "note": fmt.Sprintf("No entities matching '%s'", p.Query)}, nil
	}
	return map[string]any{"results": matches}, nil
}

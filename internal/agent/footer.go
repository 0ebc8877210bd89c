package agent

import (
	"fmt"
	"strings"
)

// humanService maps common service names to short action labels.
var humanService = map[string]string{
	"turn_on":  "on",
	"turn_off": "off",
	"toggle":   "toggled",
}

// readTools are the tools counted as lookups rather than actions.
var readTools = map[string]bool{
	"get_state":            true,
	"get_states_by_domain": true,
	"get_history":          true,
	"get_statistics":       true,
	"search_statistics":    true,
	"read_ha_config":       true,
	"read_self":            true,
	"search_entities":      true,
}

// formatToolFooter renders a compact summary of what the turn actually
// did: a rolled-up read count plus one clause per action. Never echoes
// raw entity IDs.
func formatToolFooter(log []toolUse) string {
	reads := 0
	var actions []string

	str := func(args map[string]any, key string) string {
		if v, ok := args[key].(string); ok {
			return v
		}
		return "?"
	}

	for _, use := range log {
		switch {
		case readTools[use.name]:
			reads++
		case use.name == "call_service":
			svc := str(use.args, "service")
			label, ok := humanService[svc]
			if !ok {
				label = svc
			}
			actions = append(actions, fmt.Sprintf("%s %s", str(use.args, "domain"), label))
		case use.name == "write_ha_config":
			actions = append(actions, "wrote "+str(use.args, "filename"))
		case use.name == "reload_ha_config":
			actions = append(actions, "reloaded "+str(use.args, "component"))
		case use.name == "remember":
			actions = append(actions, "saved to memory")
		case use.name == "write_self":
			actions = append(actions, "edited "+str(use.args, "filename"))
		case use.name == "delegate":
			actions = append(actions, "delegated")
		case use.name == "add_custom_alert":
			actions = append(actions, "added alert")
		case use.name == "ask_user":
			actions = append(actions, "asked you")
		}
	}

	var parts []string
	if reads > 0 {
		plural := ""
		if reads > 1 {
			plural = "s"
		}
		parts = append(parts, fmt.Sprintf("checked %d source%s", reads, plural))
	}
	parts = append(parts, actions...)

	if len(parts) == 0 {
		return ""
	}
	return "\n\n(" + strings.Join(parts, ", ") + ")"
}

package homeassistant

import (
	"fmt"
	"sort"
	"strings"
)

// Attributes worth surfacing to the model when summarizing a state.
// Everything else (icons, entity pictures, supported_features bitmasks)
// is noise at the prompt level.
var summaryAttributes = []string{
	"unit_of_measurement",
	"device_class",
	"temperature",
	"current_temperature",
	"target_temp_high",
	"target_temp_low",
	"hvac_action",
	"brightness",
	"battery_level",
	"humidity",
}

// Summarize renders a single state as a compact one-line description
// suitable for inclusion in a tool result or prompt.
func Summarize(s State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s): %s", s.FriendlyName(), s.EntityID, s.State)

	if unit, ok := s.Attributes["unit_of_measurement"].(string); ok && unit != "" {
		fmt.Fprintf(&b, " %s", unit)
	}

	var extras []string
	for _, key := range summaryAttributes {
		if key == "unit_of_measurement" {
			continue
		}
		if v, ok := s.Attributes[key]; ok && v != nil {
			extras = append(extras, fmt.Sprintf("%s=%v", key, v))
		}
	}
	if len(extras) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(extras, ", "))
	}

	if !s.LastChanged.IsZero() {
		fmt.Fprintf(&b, " (changed %s)", s.LastChanged.Format("2006-01-02 15:04"))
	}

	return b.String()
}

// SummarizeAll renders a list of states, one per line, sorted by entity ID
// for stable output.
func SummarizeAll(states []State) string {
	sorted := make([]State, len(states))
	copy(sorted, states)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EntityID < sorted[j].EntityID
	})

	var lines []string
	for _, s := range sorted {
		lines = append(lines, Summarize(s))
	}
	return strings.Join(lines, "\n")
}

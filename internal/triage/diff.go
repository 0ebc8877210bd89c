// Package triage decides which home-state changes deserve the
// assistant's attention: a noise-filtering snapshot diff, then an LLM
// classification of whatever survives.
package triage

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/hearthd/hearth/internal/homeassistant"
)

// Default noise-filter thresholds. A numeric transition must move by at
// least AbsThreshold or by PctThreshold of the old value to emit a diff.
const (
	DefaultAbsThreshold = 2.0
	DefaultPctThreshold = 0.05
)

// binaryDomains are domains whose numeric-looking states ("0"/"1") are
// really discrete. Their transitions always emit regardless of magnitude.
var binaryDomains = map[string]bool{
	"switch":        true,
	"lock":          true,
	"binary_sensor": true,
	"input_boolean": true,
}

// Differ owns the process-wide snapshot baseline and computes filtered
// diffs between poll cycles. Single writer: poll cycles must not overlap.
type Differ struct {
	absThreshold   float64
	pctThreshold   float64
	watchedDomains map[string]bool
	snapshot       map[string]string
	logger         *slog.Logger
}

// NewDiffer creates a differ for the given watched domains. Zero
// thresholds take the defaults.
func NewDiffer(watchedDomains []string, absThreshold, pctThreshold float64, logger *slog.Logger) *Differ {
	if logger == nil {
		logger = slog.Default()
	}
	if absThreshold <= 0 {
		absThreshold = DefaultAbsThreshold
	}
	if pctThreshold <= 0 {
		pctThreshold = DefaultPctThreshold
	}
	domains := make(map[string]bool, len(watchedDomains))
	for _, d := range watchedDomains {
		domains[d] = true
	}
	return &Differ{
		absThreshold:   absThreshold,
		pctThreshold:   pctThreshold,
		watchedDomains: domains,
		logger:         logger.With("component", "triage"),
	}
}

// ComputeDiff compares the current states against the previous snapshot
// and returns the changes that survive the noise filter, in entity order
// of the input. The new snapshot replaces the old one unconditionally.
// The first call establishes the baseline and emits nothing.
func (d *Differ) ComputeDiff(states []homeassistant.State) []string {
	next := make(map[string]string)
	order := make([]string, 0, len(states))
	for _, s := range states {
		if !d.watchedDomains[s.Domain()] {
			continue
		}
		if _, seen := next[s.EntityID]; !seen {
			order = append(order, s.EntityID)
		}
		next[s.EntityID] = s.State
	}

	prev := d.snapshot
	d.snapshot = next

	if prev == nil {
		d.logger.Debug("baseline snapshot established", "entities", len(next))
		return nil
	}

	var diff []string
	for _, id := range order {
		newVal := next[id]
		oldVal, existed := prev[id]
		if !existed {
			diff = append(diff, fmt.Sprintf("%s: new entity (%s)", id, newVal))
			continue
		}
		if oldVal == newVal {
			continue
		}
		if d.significant(id, oldVal, newVal) {
			diff = append(diff, fmt.Sprintf("%s: %s -> %s", id, oldVal, newVal))
		}
	}

	for id := range prev {
		if _, still := next[id]; !still {
			diff = append(diff, fmt.Sprintf("%s: removed", id))
		}
	}

	if len(diff) > 0 {
		d.logger.Debug("state diff computed", "changes", len(diff))
	}
	return diff
}

// significant applies the noise filter to one value transition.
func (d *Differ) significant(entityID, oldVal, newVal string) bool {
	oldNum, oldErr := strconv.ParseFloat(oldVal, 64)
	newNum, newErr := strconv.ParseFloat(newVal, 64)

	// Non-numeric transitions (including into/out of "unavailable")
	// always pass.
	if oldErr != nil || newErr != nil {
		return true
	}

	// Binary-like domains are discrete: every flip matters.
	domain, _, _ := strings.Cut(entityID, ".")
	if binaryDomains[domain] {
		return true
	}

	delta := math.Abs(newNum - oldNum)
	if delta >= d.absThreshold {
		return true
	}
	if oldNum == 0 {
		// Infinite percentage change qualifies.
		return true
	}
	return delta/math.Abs(oldNum) >= d.pctThreshold
}

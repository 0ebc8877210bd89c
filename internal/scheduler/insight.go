package scheduler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hearthd/hearth/internal/homeassistant"
)

// StatesFunc fetches the current entity states.
type StatesFunc func(ctx context.Context) ([]homeassistant.State, error)

// ProactiveFunc hands a context blob to the proactive channel.
type ProactiveFunc func(ctx context.Context, contextText string, useHistory bool)

// SendFunc delivers a message to the user directly.
type SendFunc func(ctx context.Context, text string) error

// ruleChecker evaluates user alert rules against live state.
type ruleChecker interface {
	Check(ctx context.Context) []string
}

// differ turns a state snapshot into significant-change lines.
type differ interface {
	ComputeDiff(states []homeassistant.State) []string
}

// InsightCycle is one poll: fire user alert rules, then diff the state
// snapshot and let the proactive channel decide whether the changes are
// worth a message.
type InsightCycle struct {
	states    StatesFunc
	rules     ruleChecker
	differ    differ
	proactive ProactiveFunc
	send      SendFunc
	logger    *slog.Logger
}

// NewInsightCycle wires a poll cycle.
func NewInsightCycle(states StatesFunc, rules ruleChecker, d differ, proactive ProactiveFunc, send SendFunc, logger *slog.Logger) *InsightCycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &InsightCycle{
		states:    states,
		rules:     rules,
		differ:    d,
		proactive: proactive,
		send:      send,
		logger:    logger.With("component", "insight"),
	}
}

// Run executes one cycle. Rule alerts are delivered verbatim; state
// changes go through the proactive channel with a throwaway history.
func (c *InsightCycle) Run(ctx context.Context) {
	if c.rules != nil {
		for _, fired := range c.rules.Check(ctx) {
			if err := c.send(ctx, fired); err != nil {
				c.logger.Error("alert delivery failed", "error", err)
			}
		}
	}

	states, err := c.states(ctx)
	if err != nil {
		c.logger.Error("state snapshot failed", "error", err)
		return
	}

	diff := c.differ.ComputeDiff(states)
	if len(diff) == 0 {
		return
	}
	c.logger.Debug("state changes detected", "count", len(diff))

	contextText := "State changes in the last poll interval:\n" + strings.Join(diff, "\n")
	c.proactive(ctx, contextText, false)
}

// Package alerts implements user-defined alert rules: simple threshold
// conditions on entity states, stored as JSON, evaluated on every poll.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Condition names the comparison a rule applies.
type Condition string

const (
	ConditionAbove  Condition = "above"
	ConditionBelow  Condition = "below"
	ConditionEquals Condition = "equals"
)

// Rule is one user-defined alert.
type Rule struct {
	ID        string    `json:"id"`
	EntityID  string    `json:"entity_id"`
	Condition Condition `json:"condition"`
	Threshold float64   `json:"threshold"`
	Message   string    `json:"message"`
	Enabled   bool      `json:"enabled"`
}

// Store persists alert rules to a JSON file.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewStore creates a rule store backed by the given JSON file. A missing
// file means no rules.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger.With("component", "alerts")}
}

// List returns all rules. An unreadable or corrupt file logs a warning
// and returns no rules rather than failing the poll.
func (s *Store) List() []Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() []Rule {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		s.logger.Warn("could not read alert rules", "error", err)
		return nil
	}
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		s.logger.Warn("could not parse alert rules", "error", err)
		return nil
	}
	return rules
}

// Add creates and persists a new enabled rule, returning it with its
// assigned ID.
func (s *Store) Add(entityID string, condition Condition, threshold float64, message string) (*Rule, error) {
	switch condition {
	case ConditionAbove, ConditionBelow, ConditionEquals:
	default:
		return nil, fmt.Errorf("unknown condition %q", condition)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rules := s.load()
	rule := Rule{
		ID:        uuid.New().String(),
		EntityID:  entityID,
		Condition: condition,
		Threshold: threshold,
		Message:   message,
		Enabled:   true,
	}
	rules = append(rules, rule)

	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal rules: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create alerts dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write rules: %w", err)
	}

	s.logger.Info("alert rule added", "id", rule.ID, "entity_id", entityID, "condition", condition, "threshold", threshold)
	return &rule, nil
}

// StateFunc fetches the current raw state string for an entity.
type StateFunc func(ctx context.Context, entityID string) (string, error)

// Evaluator checks enabled rules against live entity states.
type Evaluator struct {
	store    *Store
	getState StateFunc
	logger   *slog.Logger
}

// NewEvaluator creates a rule evaluator.
func NewEvaluator(store *Store, getState StateFunc, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{store: store, getState: getState, logger: logger.With("component", "alerts")}
}

// Check evaluates every enabled rule and returns the messages of those
// that fired. A rule whose entity cannot be fetched or whose state is not
// numeric is skipped silently; one broken rule must not break the rest.
func (e *Evaluator) Check(ctx context.Context) []string {
	var fired []string
	for _, rule := range e.store.List() {
		if !rule.Enabled {
			continue
		}

		raw, err := e.getState(ctx, rule.EntityID)
		if err != nil {
			e.logger.Debug("alert check failed", "entity_id", rule.EntityID, "error", err)
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			e.logger.Debug("alert state not numeric", "entity_id", rule.EntityID, "state", raw)
			continue
		}

		triggered := false
		switch rule.Condition {
		case ConditionAbove:
			triggered = value > rule.Threshold
		case ConditionBelow:
			triggered = value < rule.Threshold
		case ConditionEquals:
			triggered = value == rule.Threshold
		}

		if triggered {
			fired = append(fired, fmt.Sprintf("Alert: %s (%s: %v)", rule.Message, rule.EntityID, value))
		}
	}
	return fired
}

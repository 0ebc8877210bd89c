package triage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hearthd/hearth/internal/llm"
)

// Action is the triage verdict for an event.
type Action string

const (
	ActionIgnore     Action = "ignore"
	ActionLog        Action = "log"
	ActionNotify     Action = "notify"
	ActionNeedsInput Action = "needs_input"
)

var validActions = map[Action]bool{
	ActionIgnore:     true,
	ActionLog:        true,
	ActionNotify:     true,
	ActionNeedsInput: true,
}

// Event is something that happened and needs classifying: a webhook
// payload or a synthesized state-diff summary.
type Event struct {
	Title    string
	Message  string
	EntityID string
}

// completer is the slice of the gateway the classifier needs.
type completer interface {
	Complete(ctx context.Context, purpose llm.Purpose, req llm.Request) (*llm.ChatResponse, error)
}

// Classifier asks a fast model for a one-word verdict on an event.
type Classifier struct {
	gateway completer
	botName string
	logger  *slog.Logger
}

// NewClassifier creates an event classifier.
func NewClassifier(gateway completer, botName string, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{gateway: gateway, botName: botName, logger: logger.With("component", "triage")}
}

func (c *Classifier) systemPrompt() string {
	return fmt.Sprintf(`You are %s, an AI home automation assistant.
Your job is to classify incoming Home Assistant events and decide the appropriate action.

Respond with EXACTLY one word — no explanation:
- "notify"      — user needs to know immediately (security, urgent, unexpected)
- "needs_input" — requires user decision (e.g. "spa has been on 6 hours, intentional?")
- "log"         — worth recording but not urgent
- "ignore"      — routine, expected, or low importance

Context to consider: time of day, whether the event is security-related, whether it's expected behaviour.
Security events (door, moisture, lock) at unusual hours → notify.
Routine power toggles or expected climate adjustments → log or ignore.
Anything requiring a yes/no decision → needs_input.`, c.botName)
}

// Classify returns the verdict for an event. Any failure, or any
// response outside the valid set, defaults to notify: over-notifying
// beats silently dropping a security event.
func (c *Classifier) Classify(ctx context.Context, event Event, haContext string) Action {
	userMsg := fmt.Sprintf("Time: %s\nEvent title: %s\nEvent message: %s\nEntity: %s\n\nRelevant home state:\n%s",
		time.Now().Format("Monday 15:04"), event.Title, event.Message, event.EntityID, haContext)

	resp, err := c.gateway.Complete(ctx, llm.PurposeTriage, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: c.systemPrompt()},
			{Role: "user", Content: userMsg},
		},
		MaxTokens:   10,
		Temperature: 0,
	})
	if err != nil {
		c.logger.Error("classification failed, defaulting to notify", "error", err)
		return ActionNotify
	}

	raw := strings.TrimSpace(strings.ToLower(resp.Message.Content))
	if raw == "" {
		return ActionNotify
	}
	action := Action(strings.Fields(raw)[0])
	if !validActions[action] {
		c.logger.Warn("unexpected classification", "raw", raw)
		return ActionNotify
	}

	c.logger.Debug("event classified", "action", action, "entity_id", event.EntityID)
	return action
}

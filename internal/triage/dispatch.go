package triage

import (
	"context"
	"fmt"
	"log/slog"
)

// classifier is what Dispatcher needs from the Classifier.
type classifier interface {
	Classify(ctx context.Context, event Event, haContext string) Action
}

// ContextFunc fetches a short home-state summary relevant to an entity.
// entityID may be empty.
type ContextFunc func(ctx context.Context, entityID string) string

// ReplyFunc runs a full conversational turn and returns the reply.
type ReplyFunc func(ctx context.Context, text string) string

// SendFunc delivers a message to the user.
type SendFunc func(ctx context.Context, text string) error

// Dispatcher routes a classified event to the right outcome: deliver it,
// hand it to the agent for a decision, record it, or drop it.
type Dispatcher struct {
	classify  classifier
	haContext ContextFunc
	reply     ReplyFunc
	send      SendFunc
	logger    *slog.Logger
}

// NewDispatcher wires an event dispatcher.
func NewDispatcher(c classifier, haContext ContextFunc, reply ReplyFunc, send SendFunc, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		classify:  c,
		haContext: haContext,
		reply:     reply,
		send:      send,
		logger:    logger.With("component", "dispatch"),
	}
}

// Dispatch classifies and acts on one event.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	haContext := ""
	if d.haContext != nil {
		haContext = d.haContext(ctx, event.EntityID)
	}

	action := d.classify.Classify(ctx, event, haContext)
	switch action {
	case ActionNotify:
		text := event.Message
		if event.Title != "" {
			text = event.Title + "\n" + event.Message
		}
		if err := d.send(ctx, text); err != nil {
			d.logger.Error("notify delivery failed", "error", err)
		}
	case ActionNeedsInput:
		prompt := fmt.Sprintf("[HA EVENT] %s: %s — do I need to act on this?", event.Title, event.Message)
		if event.Title == "" {
			prompt = fmt.Sprintf("[HA EVENT] %s — do I need to act on this?", event.Message)
		}
		if reply := d.reply(ctx, prompt); reply != "" {
			if err := d.send(ctx, reply); err != nil {
				d.logger.Error("needs_input delivery failed", "error", err)
			}
		}
	case ActionLog:
		d.logger.Info("event logged",
			"title", event.Title,
			"message", event.Message,
			"entity_id", event.EntityID,
		)
	case ActionIgnore:
		d.logger.Debug("event ignored", "entity_id", event.EntityID)
	}
}

// Package briefing generates the scheduled morning summary from a
// snapshot of home state.
package briefing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hearthd/hearth/internal/llm"
	"github.com/hearthd/hearth/internal/persona"
)

// completer is the slice of the gateway the generator needs.
type completer interface {
	Complete(ctx context.Context, purpose llm.Purpose, req llm.Request) (*llm.ChatResponse, error)
}

// Generator produces morning briefings.
type Generator struct {
	gateway completer
	persona *persona.Store
	botName string
	loc     *time.Location
	logger  *slog.Logger
}

// NewGenerator creates a briefing generator.
func NewGenerator(gateway completer, store *persona.Store, botName string, loc *time.Location, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{
		gateway: gateway,
		persona: store,
		botName: botName,
		loc:     loc,
		logger:  logger.With("component", "briefing"),
	}
}

// systemPrompt prefers the user-editable briefing instructions and falls
// back to a built-in default.
func (g *Generator) systemPrompt() string {
	if custom := g.persona.BriefingPrompt(); custom != "" {
		return custom
	}
	return fmt.Sprintf("You are %s, the AI for a smart home. "+
		"Generate a morning briefing based on current home state. Under 150 words. "+
		"Plain prose only. Lead with the most interesting thing. Don't invent data.", g.botName)
}

// Generate renders a briefing from the given state summary. Failures
// degrade to a visible "(Briefing unavailable)" message rather than
// silence, so the user knows the briefing ran and broke.
func (g *Generator) Generate(ctx context.Context, stateSummary string) string {
	now := time.Now().In(g.loc)
	userMsg := fmt.Sprintf("Morning briefing request — %s\n\nCurrent home state:\n%s",
		now.Format("Monday 02 January 2006, 15:04"), stateSummary)

	resp, err := g.gateway.Complete(ctx, llm.PurposeBriefing, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: g.systemPrompt()},
			{Role: "user", Content: userMsg},
		},
		MaxTokens:   400,
		Temperature: 0.5,
	})
	if err != nil {
		g.logger.Error("briefing generation failed", "error", err)
		return fmt.Sprintf("Good morning. (Briefing unavailable: %v)", err)
	}
	return resp.Message.Content
}

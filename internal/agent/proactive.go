package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hearthd/hearth/internal/llm"
)

const maxRecentAlerts = 5

// RunProactive runs a system-initiated turn. The model may answer with
// the silence sentinel to say nothing at all; otherwise the text is
// delivered over the send channel and recorded in the recent-alerts
// buffer. With useHistory=false the turn runs against a throwaway
// message list and never touches the session's durable history; with
// useHistory=true a non-silent turn appends the prompt and the answer
// as an ordinary pair of turns.
func (a *Agent) RunProactive(ctx context.Context, chatID int64, contextText string, useHistory bool) {
	s := a.session(chatID)
	if !s.tryAcquire() {
		a.logger.Debug("session busy, skipping proactive turn", "chat_id", chatID)
		return
	}
	defer s.release()

	msgs := []llm.Message{{Role: "system", Content: a.proactiveSystemPrompt()}}
	if useHistory {
		msgs = append(msgs, s.historyCopy()...)
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: contextText})

	text, _, err := a.runWithTools(withSession(ctx, s), llm.PurposeProactive, msgs, a.registry.List(), 0.5, 1024, a.cfg.MaxRounds)
	if err != nil {
		a.logger.Error("proactive turn failed", "chat_id", chatID, "error", err)
		return
	}

	if strings.TrimSpace(text) == a.cfg.SilenceSentinel {
		a.logger.Debug("proactive turn chose silence", "chat_id", chatID)
		return
	}

	if err := a.send(ctx, text); err != nil {
		a.logger.Error("proactive delivery failed", "chat_id", chatID, "error", err)
		return
	}

	if useHistory {
		s.append(a.cfg.MaxHistory,
			llm.Message{Role: "user", Content: contextText},
			llm.Message{Role: "assistant", Content: text},
		)
	}
	a.pushRecentAlert(text)
}

// proactiveSystemPrompt frames a monitoring turn: the model may stay
// silent, and sees what it already told the user recently so it does
// not repeat itself.
func (a *Agent) proactiveSystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an AI smart home assistant reviewing home activity on your own initiative.\n", a.cfg.BotName)
	fmt.Fprintf(&b, "Current local date and time: %s\n\n", time.Now().In(a.loc).Format("Monday 02 January 2006, 15:04 MST"))
	b.WriteString("Decide whether anything here is worth telling the user about right now.\n")
	fmt.Fprintf(&b, "If nothing is worth a message, reply with exactly %s and nothing else.\n", a.cfg.SilenceSentinel)
	b.WriteString("Otherwise write one short plain-text message. No markdown. Don't repeat recent alerts.\n")

	if recent := a.RecentAlerts(); len(recent) > 0 {
		b.WriteString("\nAlerts you already sent recently (newest first):\n")
		for _, alert := range recent {
			fmt.Fprintf(&b, "- %s\n", truncate(alert, 200))
		}
	}
	return b.String()
}

// pushRecentAlert records a delivered proactive message, newest first,
// evicting the oldest past the cap.
func (a *Agent) pushRecentAlert(text string) {
	a.alertsMu.Lock()
	defer a.alertsMu.Unlock()
	a.recentAlerts = append([]string{text}, a.recentAlerts...)
	if len(a.recentAlerts) > maxRecentAlerts {
		a.recentAlerts = a.recentAlerts[:maxRecentAlerts]
	}
}

// RecentAlerts returns the proactive messages sent recently, newest
// first.
func (a *Agent) RecentAlerts() []string {
	a.alertsMu.Lock()
	defer a.alertsMu.Unlock()
	out := make([]string, len(a.recentAlerts))
	copy(out, a.recentAlerts)
	return out
}

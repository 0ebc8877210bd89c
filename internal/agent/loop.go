package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hearthd/hearth/internal/llm"
	"github.com/hearthd/hearth/internal/persona"
	"github.com/hearthd/hearth/internal/tools"
)

const (
	forcedSynthesisPrompt = "Based on everything you found, give your answer now."
	fallbackReply         = "I checked but couldn't formulate a response."
	stillWorkingReply     = "Still working on your last request — give me a moment."
)

// SendFunc delivers a message to the user outside the request/response
// path. Best effort, at most once.
type SendFunc func(ctx context.Context, text string) error

// Config carries the orchestrator's tunables.
type Config struct {
	BotName         string
	MaxHistory      int
	MaxRounds       int
	DelegateRounds  int
	SilenceSentinel string
	AskUserTimeout  time.Duration
}

// completer is the slice of the gateway the agent needs.
type completer interface {
	Complete(ctx context.Context, purpose llm.Purpose, req llm.Request) (*llm.ChatResponse, error)
}

// Agent drives multi-round tool-calling conversations.
type Agent struct {
	gateway  completer
	registry *tools.Registry
	persona  *persona.Store
	send     SendFunc
	cfg      Config
	loc      *time.Location
	logger   *slog.Logger

	sessionsMu sync.Mutex
	sessions   map[int64]*Session

	alertsMu     sync.Mutex
	recentAlerts []string // most recent first, capped at 5
}

// New creates the orchestrator and registers its two loop-level tools
// (ask_user, delegate) in the registry.
func New(gateway completer, registry *tools.Registry, store *persona.Store, send SendFunc, cfg Config, loc *time.Location, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	a := &Agent{
		gateway:  gateway,
		registry: registry,
		persona:  store,
		send:     send,
		cfg:      cfg,
		loc:      loc,
		logger:   logger.With("component", "agent"),
		sessions: make(map[int64]*Session),
	}
	a.registerAskUser()
	a.registerDelegate()
	return a
}

// session returns the session for a chat, creating it on first use.
func (a *Agent) session(chatID int64) *Session {
	a.sessionsMu.Lock()
	defer a.sessionsMu.Unlock()
	s, ok := a.sessions[chatID]
	if !ok {
		s = &Session{id: chatID}
		a.sessions[chatID] = s
	}
	return s
}

// Reply runs one synchronous conversational turn. A second call while a
// turn is in flight is rejected with a still-working message and leaves
// history untouched.
func (a *Agent) Reply(ctx context.Context, chatID int64, userText string) string {
	s := a.session(chatID)
	if !s.tryAcquire() {
		return stillWorkingReply
	}
	defer s.release()

	s.append(a.cfg.MaxHistory, llm.Message{Role: "user", Content: userText})

	msgs := append(
		[]llm.Message{{Role: "system", Content: a.persona.SystemPrompt(time.Now().In(a.loc))}},
		s.historyCopy()...,
	)

	text, log, err := a.runWithTools(withSession(ctx, s), llm.PurposeConversation, msgs, a.registry.List(), 0.5, 1024, a.cfg.MaxRounds)
	if err != nil {
		a.logger.Error("conversation turn failed", "chat_id", chatID, "error", err)
		return fmt.Sprintf("Error: %v", err)
	}

	final := text + formatToolFooter(log)
	s.append(a.cfg.MaxHistory, llm.Message{Role: "assistant", Content: final})
	return final
}

// toolUse records one executed invocation for the action footer.
type toolUse struct {
	name string
	args map[string]any
}

// runWithTools is the core state machine: rounds of completion → tool
// execution → resubmission, bounded by maxRounds, with one forced
// synthesis retry on empty content and a forced tool-free finalization
// when the budget runs out. Tool invocations within a round execute
// strictly in emission order.
func (a *Agent) runWithTools(ctx context.Context, purpose llm.Purpose, msgs []llm.Message, toolSchema []map[string]any, temperature float64, maxTokens, maxRounds int) (string, []toolUse, error) {
	var log []toolUse

	for rounds := 0; rounds < maxRounds; {
		resp, err := a.gateway.Complete(ctx, purpose, llm.Request{
			Messages:    msgs,
			Tools:       toolSchema,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			return "", log, err
		}

		if resp.HasToolCalls() {
			rounds++
			msgs = append(msgs, resp.Message)
			for _, tc := range resp.Message.ToolCalls {
				log = append(log, toolUse{name: tc.Function.Name, args: tc.Function.Arguments})
				a.logger.Debug("executing tool", "tool", tc.Function.Name, "round", rounds)
				result := a.registry.Execute(ctx, tc.Function.Name, tc.Function.Arguments)
				msgs = append(msgs, llm.Message{
					Role:       "tool",
					Content:    result,
					ToolCallID: tc.ID,
				})
			}
			continue
		}

		content := strings.TrimSpace(resp.Message.Content)
		if content == "" {
			// One forced-synthesis retry rather than silently
			// returning nothing.
			msgs = append(msgs,
				llm.Message{Role: "assistant", Content: ""},
				llm.Message{Role: "user", Content: forcedSynthesisPrompt},
			)
			content = a.finalize(ctx, purpose, msgs, temperature, maxTokens)
		}
		return content, log, nil
	}

	// Round budget exhausted: force one last completion without tools.
	// This path always terminates.
	a.logger.Warn("tool round budget exhausted, forcing final answer", "purpose", purpose, "rounds", maxRounds)
	msgs = append(msgs, llm.Message{Role: "user", Content: forcedSynthesisPrompt})
	return a.finalize(ctx, purpose, msgs, temperature, maxTokens), log, nil
}

// finalize runs one tool-free completion, falling back to a canned reply
// on failure or emptiness.
func (a *Agent) finalize(ctx context.Context, purpose llm.Purpose, msgs []llm.Message, temperature float64, maxTokens int) string {
	resp, err := a.gateway.Complete(ctx, purpose, llm.Request{
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		a.logger.Error("forced finalization failed", "error", err)
		return fallbackReply
	}
	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		return fallbackReply
	}
	return content
}

// sessionKey carries the active session through tool execution so
// ask_user can reach it.
type sessionKey struct{}

func withSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func sessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hearthd/hearth/internal/alerts"
	"github.com/hearthd/hearth/internal/haconfig"
	"github.com/hearthd/hearth/internal/llm"
	"github.com/hearthd/hearth/internal/persona"
	"github.com/hearthd/hearth/internal/tools"
)

// step is one scripted gateway response.
type step struct {
	resp *llm.ChatResponse
	err  error
}

// scriptedGateway returns canned responses in order and records every
// request it sees.
type scriptedGateway struct {
	mu       sync.Mutex
	steps    []step
	requests []llm.Request
	purposes []llm.Purpose
}

func (g *scriptedGateway) Complete(ctx context.Context, purpose llm.Purpose, req llm.Request) (*llm.ChatResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	g.purposes = append(g.purposes, purpose)
	if len(g.steps) == 0 {
		return textResponse("done"), nil
	}
	s := g.steps[0]
	g.steps = g.steps[1:]
	return s.resp, s.err
}

func (g *scriptedGateway) recorded() ([]llm.Request, []llm.Purpose) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]llm.Request(nil), g.requests...), append([]llm.Purpose(nil), g.purposes...)
}

func textResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{Message: llm.Message{Role: "assistant", Content: content}}
}

func toolResponse(calls ...llm.ToolCall) *llm.ChatResponse {
	return &llm.ChatResponse{Message: llm.Message{Role: "assistant", ToolCalls: calls}}
}

func call(id, name string, args map[string]any) llm.ToolCall {
	return llm.ToolCall{ID: id, Function: llm.ToolFunction{Name: name, Arguments: args}}
}

type testHarness struct {
	agent   *Agent
	gateway *scriptedGateway
	sent    *sentLog
}

type sentLog struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (l *sentLog) send(ctx context.Context, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.messages = append(l.messages, text)
	return nil
}

func (l *sentLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

func newHarness(t *testing.T, steps ...step) *testHarness {
	t.Helper()
	dir := t.TempDir()
	store, err := persona.NewStore(filepath.Join(dir, "persona"), "Hearth", "UTC", nil)
	if err != nil {
		t.Fatalf("persona store: %v", err)
	}
	registry := tools.NewRegistry(tools.Deps{
		Persona:  store,
		HAConfig: haconfig.NewEditor(filepath.Join(dir, "ha"), nil, nil),
		Alerts:   alerts.NewStore(filepath.Join(dir, "user_alerts.json"), nil),
	}, nil)

	gw := &scriptedGateway{steps: steps}
	sent := &sentLog{}
	a := New(gw, registry, store, sent.send, Config{
		BotName:         "Hearth",
		MaxHistory:      20,
		MaxRounds:       5,
		DelegateRounds:  8,
		SilenceSentinel: "SILENT",
		AskUserTimeout:  2 * time.Second,
	}, time.UTC, nil)

	return &testHarness{agent: a, gateway: gw, sent: sent}
}

func TestReply_DirectAnswer(t *testing.T) {
	h := newHarness(t, step{resp: textResponse("The spa is 38 degrees.")})

	got := h.agent.Reply(context.Background(), 1, "How warm is the spa?")
	if got != "The spa is 38 degrees." {
		t.Errorf("reply = %q", got)
	}

	s := h.agent.session(1)
	if s.historyLen() != 2 {
		t.Errorf("history len = %d, want 2 (user + assistant)", s.historyLen())
	}
	if s.isBusy() {
		t.Error("busy flag still set after turn")
	}
}

func TestReply_ToolRoundThenAnswer(t *testing.T) {
	h := newHarness(t,
		step{resp: toolResponse(call("t1", "search_entities", map[string]any{"query": "spa"}))},
		step{resp: textResponse("Found it.")},
	)
	h.agent.persona.WriteSelf(persona.FileEntities, "sensor.spa_temp - Spa\n")

	got := h.agent.Reply(context.Background(), 1, "find the spa sensor")
	if !strings.HasPrefix(got, "Found it.") {
		t.Fatalf("reply = %q", got)
	}
	if !strings.Contains(got, "(checked 1 source)") {
		t.Errorf("reply %q missing action footer", got)
	}

	reqs, _ := h.gateway.recorded()
	if len(reqs) != 2 {
		t.Fatalf("got %d gateway calls, want 2", len(reqs))
	}
	// Second request must carry the assistant tool-call turn and the
	// tool result, in order.
	last := reqs[1].Messages
	toolMsg := last[len(last)-1]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "t1" {
		t.Errorf("final message = %+v, want tool result for t1", toolMsg)
	}
	if !strings.Contains(toolMsg.Content, "sensor.spa_temp") {
		t.Errorf("tool result = %q", toolMsg.Content)
	}
	if assistant := last[len(last)-2]; len(assistant.ToolCalls) != 1 {
		t.Errorf("assistant turn missing tool calls: %+v", assistant)
	}
}

func TestReply_ToolsExecuteInEmissionOrder(t *testing.T) {
	h := newHarness(t,
		step{resp: toolResponse(
			call("t1", "remember", map[string]any{"note": "first"}),
			call("t2", "remember", map[string]any{"note": "second"}),
		)},
		step{resp: textResponse("Saved.")},
	)

	h.agent.Reply(context.Background(), 1, "remember both")

	mem := h.agent.persona.Memory()
	if mem != "- first\n- second" {
		t.Errorf("memory = %q, want ordered appends", mem)
	}
}

func TestReply_EmptyContentForcesSynthesisOnce(t *testing.T) {
	h := newHarness(t,
		step{resp: textResponse("   ")},
		step{resp: textResponse("Here is the answer.")},
	)

	got := h.agent.Reply(context.Background(), 1, "hello")
	if got != "Here is the answer." {
		t.Errorf("reply = %q", got)
	}

	reqs, _ := h.gateway.recorded()
	if len(reqs) != 2 {
		t.Fatalf("got %d gateway calls, want 2 (original + one retry)", len(reqs))
	}
	retry := reqs[1].Messages
	if retry[len(retry)-1].Content != forcedSynthesisPrompt {
		t.Errorf("retry prompt = %q", retry[len(retry)-1].Content)
	}
	if len(reqs[1].Tools) != 0 {
		t.Error("forced synthesis should run without tools")
	}
}

func TestReply_EmptyRetryFallsBack(t *testing.T) {
	h := newHarness(t,
		step{resp: textResponse("")},
		step{resp: textResponse("")},
	)

	got := h.agent.Reply(context.Background(), 1, "hello")
	if got != fallbackReply {
		t.Errorf("reply = %q, want canned fallback", got)
	}
}

func TestReply_RoundBudgetForcesFinalization(t *testing.T) {
	// Five rounds of tool calls, then the forced tool-free call.
	var steps []step
	for i := 0; i < 5; i++ {
		steps = append(steps, step{resp: toolResponse(call("t", "read_self", map[string]any{"filename": "soul.md"}))})
	}
	steps = append(steps, step{resp: textResponse("Best I could do.")})
	h := newHarness(t, steps...)

	got := h.agent.Reply(context.Background(), 1, "dig deep")
	if !strings.HasPrefix(got, "Best I could do.") {
		t.Fatalf("reply = %q", got)
	}

	reqs, _ := h.gateway.recorded()
	if len(reqs) != 6 {
		t.Fatalf("got %d gateway calls, want 5 rounds + 1 finalization", len(reqs))
	}
	final := reqs[5]
	if len(final.Tools) != 0 {
		t.Error("finalization call should disable tools")
	}
	if final.Messages[len(final.Messages)-1].Content != forcedSynthesisPrompt {
		t.Errorf("finalization prompt = %q", final.Messages[len(final.Messages)-1].Content)
	}
}

func TestReply_GatewayFailureYieldsErrorReply(t *testing.T) {
	h := newHarness(t, step{err: errors.New("all providers down")})

	got := h.agent.Reply(context.Background(), 1, "hello")
	if !strings.HasPrefix(got, "Error: ") {
		t.Errorf("reply = %q, want Error: prefix", got)
	}
}

func TestReply_BusyRejectedAndHistoryUntouched(t *testing.T) {
	h := newHarness(t, step{resp: textResponse("done")})
	s := h.agent.session(1)
	if !s.tryAcquire() {
		t.Fatal("could not acquire fresh session")
	}

	got := h.agent.Reply(context.Background(), 1, "second message")
	if got != stillWorkingReply {
		t.Errorf("reply = %q, want still-working rejection", got)
	}
	if s.historyLen() != 0 {
		t.Errorf("history len = %d, rejected call must not modify history", s.historyLen())
	}
	s.release()
}

func TestReply_SystemPromptRenderedFreshEachTurn(t *testing.T) {
	h := newHarness(t,
		step{resp: textResponse("one")},
		step{resp: textResponse("two")},
	)

	h.agent.Reply(context.Background(), 1, "first")
	h.agent.persona.Remember("new fact learned between turns")
	h.agent.Reply(context.Background(), 1, "second")

	reqs, _ := h.gateway.recorded()
	if strings.Contains(reqs[0].Messages[0].Content, "new fact learned between turns") {
		t.Error("first turn should not see the later note")
	}
	if !strings.Contains(reqs[1].Messages[0].Content, "new fact learned between turns") {
		t.Error("second turn should see the fresh system prompt")
	}
}

func TestReply_HistoryFIFOTruncation(t *testing.T) {
	var steps []step
	for i := 0; i < 15; i++ {
		steps = append(steps, step{resp: textResponse("ok")})
	}
	h := newHarness(t, steps...)

	for i := 0; i < 15; i++ {
		h.agent.Reply(context.Background(), 1, "message")
	}

	s := h.agent.session(1)
	if s.historyLen() != 20 {
		t.Errorf("history len = %d, want cap of 20", s.historyLen())
	}
}

func TestDelegate_RunsSubLoopWithoutDelegateTool(t *testing.T) {
	h := newHarness(t,
		// Conversation round 1: model delegates.
		step{resp: toolResponse(call("t1", "delegate", map[string]any{"task": "rewrite the automations"}))},
		// Delegate sub-loop: one direct answer.
		step{resp: textResponse("Rewrote two automations.")},
		// Conversation round 2: final answer.
		step{resp: textResponse("Delegated and done.")},
	)

	got := h.agent.Reply(context.Background(), 1, "do something big")
	if !strings.HasPrefix(got, "Delegated and done.") {
		t.Fatalf("reply = %q", got)
	}
	if !strings.Contains(got, "delegated") {
		t.Errorf("reply %q missing delegation footer", got)
	}

	reqs, purposes := h.gateway.recorded()
	if purposes[1] != llm.PurposeDelegate {
		t.Errorf("sub-loop purpose = %q, want delegate", purposes[1])
	}
	for _, schema := range reqs[1].Tools {
		fn := schema["function"].(map[string]any)
		if fn["name"] == "delegate" {
			t.Fatal("delegate tool must be removed from the sub-loop schema")
		}
	}
	if len(reqs[1].Tools) == 0 {
		t.Error("sub-loop should still carry the other tools")
	}

	// Parent sees the sub-loop result as an ordinary tool result.
	parentFinal := reqs[2].Messages
	toolMsg := parentFinal[len(parentFinal)-1]
	if !strings.Contains(toolMsg.Content, "Rewrote two automations.") {
		t.Errorf("parent tool result = %q", toolMsg.Content)
	}
}

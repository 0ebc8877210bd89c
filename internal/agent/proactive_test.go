package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestRunProactive_DeliversAndRecords(t *testing.T) {
	h := newHarness(t, step{resp: textResponse("The garage door has been open for an hour.")})

	h.agent.RunProactive(context.Background(), 1, "state diff: garage door open 60m", false)

	sent := h.sent.all()
	if len(sent) != 1 || sent[0] != "The garage door has been open for an hour." {
		t.Fatalf("sent = %v", sent)
	}
	if alerts := h.agent.RecentAlerts(); len(alerts) != 1 {
		t.Errorf("recent alerts = %v", alerts)
	}
}

func TestRunProactive_SilenceSentinelSuppressesEverything(t *testing.T) {
	h := newHarness(t, step{resp: textResponse("SILENT")})

	h.agent.RunProactive(context.Background(), 1, "state diff: nothing notable", true)

	if sent := h.sent.all(); len(sent) != 0 {
		t.Errorf("sent = %v, want no delivery", sent)
	}
	if alerts := h.agent.RecentAlerts(); len(alerts) != 0 {
		t.Errorf("recent alerts = %v, want unchanged buffer", alerts)
	}
	if n := h.agent.session(1).historyLen(); n != 0 {
		t.Errorf("history len = %d, silent turn must not append", n)
	}
}

func TestRunProactive_ThrowawayHistoryNeverAppends(t *testing.T) {
	h := newHarness(t,
		step{resp: textResponse("hello")},
		step{resp: textResponse("Your power usage doubled.")},
	)
	h.agent.Reply(context.Background(), 1, "hi")
	before := h.agent.session(1).historyLen()

	h.agent.RunProactive(context.Background(), 1, "poll diff", false)

	if after := h.agent.session(1).historyLen(); after != before {
		t.Errorf("history len %d -> %d, use_history=false must not change it", before, after)
	}
	if len(h.sent.all()) != 2 {
		t.Error("proactive message should still be delivered")
	}
}

func TestRunProactive_WithHistoryAppendsExactlyTwoTurns(t *testing.T) {
	h := newHarness(t, step{resp: textResponse("Heads up: water leak sensor tripped.")})

	h.agent.RunProactive(context.Background(), 1, "webhook: water leak", true)

	s := h.agent.session(1)
	if s.historyLen() != 2 {
		t.Fatalf("history len = %d, want exactly 2", s.historyLen())
	}
	hist := s.historyCopy()
	if hist[0].Role != "user" || hist[1].Role != "assistant" {
		t.Errorf("history roles = %s, %s", hist[0].Role, hist[1].Role)
	}
}

func TestRunProactive_BufferCappedAtFive(t *testing.T) {
	var steps []step
	for i := 0; i < 7; i++ {
		steps = append(steps, step{resp: textResponse(fmt.Sprintf("alert %d", i))})
	}
	h := newHarness(t, steps...)

	for i := 0; i < 7; i++ {
		h.agent.RunProactive(context.Background(), 1, "context", false)
	}

	alerts := h.agent.RecentAlerts()
	if len(alerts) != 5 {
		t.Fatalf("buffer len = %d, want 5", len(alerts))
	}
	if alerts[0] != "alert 6" {
		t.Errorf("newest = %q, want alert 6", alerts[0])
	}
	for _, a := range alerts {
		if a == "alert 0" || a == "alert 1" {
			t.Errorf("oldest alerts not evicted: %v", alerts)
		}
	}
}

func TestRunProactive_RecentAlertsFeedThePrompt(t *testing.T) {
	h := newHarness(t,
		step{resp: textResponse("Garage open.")},
		step{resp: textResponse("SILENT")},
	)

	h.agent.RunProactive(context.Background(), 1, "diff 1", false)
	h.agent.RunProactive(context.Background(), 1, "diff 2", false)

	reqs, _ := h.gateway.recorded()
	system := reqs[1].Messages[0].Content
	if !strings.Contains(system, "Garage open.") {
		t.Errorf("second prompt missing prior alert:\n%s", system)
	}
}

func TestRunProactive_SkipsWhenSessionBusy(t *testing.T) {
	h := newHarness(t)
	s := h.agent.session(1)
	s.tryAcquire()
	defer s.release()

	h.agent.RunProactive(context.Background(), 1, "context", false)

	if _, purposes := h.gateway.recorded(); len(purposes) != 0 {
		t.Error("proactive turn should not run while session is busy")
	}
}

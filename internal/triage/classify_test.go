package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/hearthd/hearth/internal/llm"
)

type fakeGateway struct {
	response string
	err      error
	purpose  llm.Purpose
}

func (f *fakeGateway) Complete(ctx context.Context, purpose llm.Purpose, req llm.Request) (*llm.ChatResponse, error) {
	f.purpose = purpose
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Message: llm.Message{Role: "assistant", Content: f.response}}, nil
}

func TestClassify_ValidActions(t *testing.T) {
	tests := []struct {
		response string
		want     Action
	}{
		{"notify", ActionNotify},
		{"  IGNORE  ", ActionIgnore},
		{"log", ActionLog},
		{"needs_input", ActionNeedsInput},
		{"notify because the door opened", ActionNotify},
	}
	for _, tt := range tests {
		gw := &fakeGateway{response: tt.response}
		c := NewClassifier(gw, "Hearth", nil)
		got := c.Classify(context.Background(), Event{Message: "door opened"}, "")
		if got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.response, got, tt.want)
		}
		if gw.purpose != llm.PurposeTriage {
			t.Errorf("purpose = %q, want triage", gw.purpose)
		}
	}
}

func TestClassify_UnexpectedWordDefaultsToNotify(t *testing.T) {
	c := NewClassifier(&fakeGateway{response: "escalate"}, "Hearth", nil)
	if got := c.Classify(context.Background(), Event{}, ""); got != ActionNotify {
		t.Errorf("got %q, want notify fallback", got)
	}
}

func TestClassify_EmptyResponseDefaultsToNotify(t *testing.T) {
	c := NewClassifier(&fakeGateway{response: "   "}, "Hearth", nil)
	if got := c.Classify(context.Background(), Event{}, ""); got != ActionNotify {
		t.Errorf("got %q, want notify fallback", got)
	}
}

func TestClassify_GatewayErrorDefaultsToNotify(t *testing.T) {
	c := NewClassifier(&fakeGateway{err: errors.New("all providers down")}, "Hearth", nil)
	if got := c.Classify(context.Background(), Event{Message: "water leak"}, ""); got != ActionNotify {
		t.Errorf("got %q, want notify on failure", got)
	}
}

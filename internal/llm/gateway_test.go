package llm

import (
	"context"
	"errors"
	"testing"
)

// fakeClient records the models it was asked for and fails until the
// configured model succeeds.
type fakeClient struct {
	calls     []string
	succeedOn string
	response  *ChatResponse
}

func (f *fakeClient) Chat(ctx context.Context, model string, req Request) (*ChatResponse, error) {
	f.calls = append(f.calls, model)
	if model == f.succeedOn {
		if f.response != nil {
			return f.response, nil
		}
		return &ChatResponse{Model: model, Message: Message{Role: "assistant", Content: "ok"}}, nil
	}
	return nil, errors.New("provider down")
}

func (f *fakeClient) Ping(ctx context.Context) error { return nil }

func TestGatewayComplete_PrimarySucceeds(t *testing.T) {
	fake := &fakeClient{succeedOn: "claude-sonnet-4-5"}
	gw := NewGateway(fake, nil, map[Purpose]Route{
		PurposeConversation: {Model: "anthropic/claude-sonnet-4-5", Fallbacks: []string{"anthropic/claude-haiku-4-5"}},
	}, nil)

	resp, err := gw.Complete(context.Background(), PurposeConversation, Request{})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if resp.Message.Content != "ok" {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if len(fake.calls) != 1 {
		t.Errorf("calls = %v, fallbacks should not be tried after success", fake.calls)
	}
}

func TestGatewayComplete_FallsBackInOrder(t *testing.T) {
	fake := &fakeClient{succeedOn: "claude-haiku-4-5"}
	gw := NewGateway(fake, nil, map[Purpose]Route{
		PurposeTriage: {
			Model:     "anthropic/claude-sonnet-4-5",
			Fallbacks: []string{"anthropic/claude-haiku-4-5", "anthropic/claude-opus-4-1"},
		},
	}, nil)

	_, err := gw.Complete(context.Background(), PurposeTriage, Request{})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	want := []string{"claude-sonnet-4-5", "claude-haiku-4-5"}
	if len(fake.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", fake.calls, want)
	}
	for i := range want {
		if fake.calls[i] != want[i] {
			t.Errorf("call[%d] = %q, want %q", i, fake.calls[i], want[i])
		}
	}
}

func TestGatewayComplete_AllFailWrapsErrUnavailable(t *testing.T) {
	fake := &fakeClient{succeedOn: "never"}
	gw := NewGateway(fake, nil, map[Purpose]Route{
		PurposeBriefing: {Model: "anthropic/a", Fallbacks: []string{"anthropic/b"}},
	}, nil)

	_, err := gw.Complete(context.Background(), PurposeBriefing, Request{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if len(fake.calls) != 2 {
		t.Errorf("calls = %v, want every model tried exactly once", fake.calls)
	}
}

func TestGatewayComplete_RoutesByPrefix(t *testing.T) {
	anthro := &fakeClient{succeedOn: "never"}
	router := &fakeClient{succeedOn: "qwen/qwen3-next"}
	gw := NewGateway(anthro, router, map[Purpose]Route{
		PurposeProactive: {
			Model:     "anthropic/claude-haiku-4-5",
			Fallbacks: []string{"openrouter/qwen/qwen3-next"},
		},
	}, nil)

	_, err := gw.Complete(context.Background(), PurposeProactive, Request{})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if len(anthro.calls) != 1 || anthro.calls[0] != "claude-haiku-4-5" {
		t.Errorf("anthropic calls = %v", anthro.calls)
	}
	if len(router.calls) != 1 || router.calls[0] != "qwen/qwen3-next" {
		t.Errorf("openrouter calls = %v, prefix should be stripped once", router.calls)
	}
}

func TestGatewayComplete_UnknownPurpose(t *testing.T) {
	gw := NewGateway(&fakeClient{}, nil, map[Purpose]Route{}, nil)
	_, err := gw.Complete(context.Background(), Purpose("unknown"), Request{})
	if err == nil {
		t.Fatal("expected error for unconfigured purpose")
	}
}

func TestGatewayComplete_MissingProviderSkipsToFallback(t *testing.T) {
	anthro := &fakeClient{succeedOn: "claude-haiku-4-5"}
	gw := NewGateway(anthro, nil, map[Purpose]Route{
		PurposeDelegate: {
			Model:     "openrouter/qwen/qwen3-next",
			Fallbacks: []string{"anthropic/claude-haiku-4-5"},
		},
	}, nil)

	_, err := gw.Complete(context.Background(), PurposeDelegate, Request{})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if len(anthro.calls) != 1 {
		t.Errorf("anthropic calls = %v, want fallback attempted", anthro.calls)
	}
}

func TestGatewayComplete_CancelledContextStopsChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeClient{succeedOn: "b"}
	gw := NewGateway(fake, nil, map[Purpose]Route{
		PurposeConversation: {Model: "anthropic/a", Fallbacks: []string{"anthropic/b"}},
	}, nil)

	_, err := gw.Complete(ctx, PurposeConversation, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(fake.calls) > 1 {
		t.Errorf("calls = %v, chain should stop on cancelled context", fake.calls)
	}
}

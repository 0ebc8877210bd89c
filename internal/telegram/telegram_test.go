package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// rewriteHost sends every request to the test server regardless of the
// hard-coded API base.
func rewriteHost(ts *httptest.Server) http.RoundTripper {
	target, _ := url.Parse(ts.URL)
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		req.URL.Scheme = target.Scheme
		req.URL.Host = target.Host
		return http.DefaultTransport.RoundTrip(req)
	})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c := NewClient("test-token", 42, nil)
	c.httpc = &http.Client{Transport: rewriteHost(ts)}
	return c
}

func TestSendMessage(t *testing.T) {
	var mu sync.Mutex
	var bodies []map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if !strings.Contains(r.URL.Path, "bottest-token") {
			t.Errorf("path %s missing bot token", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		json.Unmarshal(raw, &body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	})

	if err := c.SendMessage(context.Background(), "The **spa** is ready."); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 1 {
		t.Fatalf("got %d requests, want 1", len(bodies))
	}
	if got := bodies[0]["text"]; got != "The spa is ready." {
		t.Errorf("text = %q, want markdown flattened", got)
	}
	if got := bodies[0]["chat_id"].(float64); int64(got) != 42 {
		t.Errorf("chat_id = %v", got)
	}
}

func TestSendMessage_APIErrorSurfaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
	})

	err := c.SendMessage(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("err = %v, want API description surfaced", err)
	}
}

func TestSendMessage_EmptyAfterFlattenSkipped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty message")
	})

	if err := c.SendMessage(context.Background(), "   "); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
}

func TestRun_RoutesOwnChatOnly(t *testing.T) {
	first := true
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getUpdates") {
			if first {
				first = false
				fmt.Fprint(w, `{"ok":true,"result":[
					{"update_id":7,"message":{"text":"hello","chat":{"id":42}}},
					{"update_id":8,"message":{"text":"intruder","chat":{"id":999}}},
					{"update_id":9,"message":{"chat":{"id":42}}}
				]}`)
				return
			}
			fmt.Fprint(w, `{"ok":true,"result":[]}`)
			return
		}
		t.Errorf("unexpected path %s", r.URL.Path)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var mu sync.Mutex
	var got []string

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx, func(ctx context.Context, chatID int64, text string) {
			mu.Lock()
			got = append(got, fmt.Sprintf("%d:%s", chatID, text))
			mu.Unlock()
			cancel()
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "42:hello" {
		t.Errorf("handled = %v, want only the owner's text message", got)
	}
	if c.offset != 10 {
		t.Errorf("offset = %d, want 10 (highest update_id + 1)", c.offset)
	}
}

func TestSplitMessage(t *testing.T) {
	long := strings.Repeat("line of text\n", 50) // 650 chars

	chunks := splitMessage(long, 100)
	if len(chunks) < 7 {
		t.Fatalf("got %d chunks, want at least 7", len(chunks))
	}
	var rejoined string
	for _, chunk := range chunks {
		if len(chunk) > 100 {
			t.Errorf("chunk length %d exceeds limit", len(chunk))
		}
		rejoined += chunk
	}
	if rejoined != long {
		t.Error("chunks do not rejoin to the original text")
	}

	if got := splitMessage("short", 100); len(got) != 1 || got[0] != "short" {
		t.Errorf("splitMessage(short) = %v", got)
	}
}

package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// EventClient subscribes to Home Assistant state_changed events over the
// WebSocket API. It reconnects on its own with backoff; consumers just
// read from Events().
type EventClient struct {
	baseURL string
	token   string
	conn    *websocket.Conn
	connMu  sync.Mutex
	msgID   atomic.Int64

	events chan StateChange
	logger *slog.Logger
}

// StateChange is the payload of a state_changed event.
type StateChange struct {
	EntityID string `json:"entity_id"`
	OldState *State `json:"old_state"`
	NewState *State `json:"new_state"`
}

type wsMessage struct {
	ID      int64           `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success bool            `json:"success,omitempty"`
	Event   *wsEvent        `json:"event,omitempty"`
	Error   *wsError        `json:"error,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

type wsEvent struct {
	Type string          `json:"event_type"`
	Data json.RawMessage `json:"data"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEventClient creates a state_changed event subscriber.
func NewEventClient(baseURL, token string, logger *slog.Logger) *EventClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventClient{
		baseURL: baseURL,
		token:   token,
		events:  make(chan StateChange, 100),
		logger:  logger.With("component", "ha-events"),
	}
}

// Events returns the channel state changes are delivered on.
func (c *EventClient) Events() <-chan StateChange {
	return c.events
}

// Run connects, subscribes, and keeps the connection alive until ctx is
// cancelled. Connection loss triggers reconnect with capped backoff.
func (c *EventClient) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := c.connect(ctx)
		if err == nil {
			backoff = time.Second
			err = c.readLoop(ctx)
		}

		if ctx.Err() != nil {
			return
		}

		c.logger.Warn("WebSocket connection lost", "error", err, "retry_in", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > time.Minute {
			backoff = time.Minute
		}
	}
}

// Close closes the current connection, if any.
func (c *EventClient) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// connect dials the WebSocket, authenticates, and subscribes to
// state_changed events.
func (c *EventClient) connect(ctx context.Context) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = "/api/websocket"

	c.logger.Debug("connecting", "url", u.String())

	dialer := websocket.Dialer{
		ReadBufferSize:  1024 * 1024,
		WriteBufferSize: 64 * 1024,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	conn.SetReadLimit(100 * 1024 * 1024)

	// Auth handshake: auth_required → auth → auth_ok
	var authReq wsMessage
	if err := conn.ReadJSON(&authReq); err != nil {
		conn.Close()
		return fmt.Errorf("read auth_required: %w", err)
	}
	if authReq.Type != "auth_required" {
		conn.Close()
		return fmt.Errorf("expected auth_required, got %s", authReq.Type)
	}
	if err := conn.WriteJSON(map[string]string{"type": "auth", "access_token": c.token}); err != nil {
		conn.Close()
		return fmt.Errorf("send auth: %w", err)
	}
	var authResp wsMessage
	if err := conn.ReadJSON(&authResp); err != nil {
		conn.Close()
		return fmt.Errorf("read auth response: %w", err)
	}
	if authResp.Type == "auth_invalid" {
		conn.Close()
		return fmt.Errorf("authentication failed")
	}
	if authResp.Type != "auth_ok" {
		conn.Close()
		return fmt.Errorf("unexpected auth response: %s", authResp.Type)
	}

	// Subscribe to state_changed
	id := c.msgID.Add(1)
	sub := map[string]any{
		"id":         id,
		"type":       "subscribe_events",
		"event_type": "state_changed",
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	var subResp wsMessage
	if err := conn.ReadJSON(&subResp); err != nil {
		conn.Close()
		return fmt.Errorf("read subscribe response: %w", err)
	}
	if !subResp.Success {
		conn.Close()
		if subResp.Error != nil {
			return fmt.Errorf("subscribe failed: %s: %s", subResp.Error.Code, subResp.Error.Message)
		}
		return fmt.Errorf("subscribe failed")
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.logger.Info("WebSocket connected, subscribed to state_changed")
	return nil
}

// readLoop reads events until the connection drops or ctx is cancelled.
func (c *EventClient) readLoop(ctx context.Context) error {
	// Close the connection when ctx is cancelled so ReadJSON unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()

	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return fmt.Errorf("connection closed")
		}

		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if msg.Type != "event" || msg.Event == nil || msg.Event.Type != "state_changed" {
			continue
		}

		var change StateChange
		if err := json.Unmarshal(msg.Event.Data, &change); err != nil {
			c.logger.Warn("bad state_changed payload", "error", err)
			continue
		}

		select {
		case c.events <- change:
		default:
			c.logger.Warn("event channel full, dropping event", "entity_id", change.EntityID)
		}
	}
}

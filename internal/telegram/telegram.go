// Package telegram is a minimal Telegram Bot API adapter: outbound
// sendMessage and a getUpdates long-poll loop for inbound text.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hearthd/hearth/internal/httpkit"
	"github.com/hearthd/hearth/internal/plaintext"
)

const (
	apiBase = "https://api.telegram.org"

	// Telegram rejects messages over 4096 characters; chunk below that.
	maxMessageLen = 4000

	// Long-poll hold time on getUpdates, in seconds.
	pollTimeout = 50
)

// HandlerFunc receives one inbound text message.
type HandlerFunc func(ctx context.Context, chatID int64, text string)

// Client talks to the Telegram Bot API for a single bot token.
type Client struct {
	token  string
	chatID int64 // the only chat we talk to; everything else is dropped
	httpc  *http.Client
	logger *slog.Logger
	offset int64
}

// NewClient creates a Telegram client. chatID is the owner's chat;
// inbound messages from any other chat are ignored.
func NewClient(token string, chatID int64, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		token:  token,
		chatID: chatID,
		// No overall timeout: the long poll holds the connection open
		// for pollTimeout seconds by design.
		httpc:  httpkit.NewClient(httpkit.WithTimeout(0), httpkit.WithLogger(logger)),
		logger: logger.With("component", "telegram"),
	}
}

func (c *Client) url(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", apiBase, c.token, method)
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// update is one getUpdates entry; only text messages matter here.
type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// SendMessage delivers text to the configured chat. Markdown is
// flattened to plain text, and long messages are split into chunks.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	flat := plaintext.Flatten(text)
	if flat == "" {
		return nil
	}
	for _, chunk := range splitMessage(flat, maxMessageLen) {
		if err := c.sendChunk(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) sendChunk(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id": c.chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal sendMessage: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: sendMessage: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("telegram: decode sendMessage response: %w", err)
	}
	if !envelope.OK {
		return fmt.Errorf("telegram: sendMessage failed: %s", envelope.Description)
	}
	return nil
}

// Run long-polls getUpdates until ctx is cancelled, invoking handler for
// each text message from the configured chat.
func (c *Client) Run(ctx context.Context, handler HandlerFunc) error {
	c.logger.Info("telegram long-poll starting", "chat_id", c.chatID)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := c.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("getUpdates failed, backing off", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= c.offset {
				c.offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.Text == "" {
				continue
			}
			if u.Message.Chat.ID != c.chatID {
				c.logger.Warn("ignoring message from unknown chat", "chat_id", u.Message.Chat.ID)
				continue
			}
			handler(ctx, u.Message.Chat.ID, u.Message.Text)
		}
	}
}

func (c *Client) getUpdates(ctx context.Context) ([]update, error) {
	body, err := json.Marshal(map[string]any{
		"offset":          c.offset,
		"timeout":         pollTimeout,
		"allowed_updates": []string{"message"},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: marshal getUpdates: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("getUpdates"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: getUpdates: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 64*1024)

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("telegram: decode getUpdates response: %w", err)
	}
	if !envelope.OK {
		return nil, fmt.Errorf("telegram: getUpdates failed: %s", envelope.Description)
	}

	var updates []update
	if err := json.Unmarshal(envelope.Result, &updates); err != nil {
		return nil, fmt.Errorf("telegram: decode updates: %w", err)
	}
	return updates, nil
}

// splitMessage cuts text into chunks of at most limit characters,
// preferring to break at line boundaries.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if text[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if len(text) > 0 {
		chunks = append(chunks, text)
	}
	return chunks
}

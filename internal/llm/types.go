// Package llm provides completion provider clients and the purpose-routed
// gateway the agent talks to.
package llm

import "log/slog"

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message represents a chat message for the LLM.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id,omitempty"` // Provider-assigned ID, echoed back on the tool result
	Function ToolFunction `json:"function"`
}

// ToolFunction carries the requested tool name and its arguments.
type ToolFunction struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Request is a provider-neutral completion request. Tools use the OpenAI
// function-declaration shape; conversion to provider wire formats happens
// at the provider boundary.
type Request struct {
	Messages    []Message
	Tools       []map[string]any
	Temperature float64
	MaxTokens   int
}

// ChatResponse is the unified response from any provider. A response
// either carries final text, or one or more requested tool calls.
type ChatResponse struct {
	Model   string
	Message Message

	// Token usage (provider-neutral)
	InputTokens  int
	OutputTokens int
}

// HasToolCalls reports whether the model requested tool invocations.
func (r *ChatResponse) HasToolCalls() bool {
	return len(r.Message.ToolCalls) > 0
}

// Package engine defines the contract with the agent/planning engine.
// The engine itself is an external collaborator: aide consumes its step
// stream and drives its resume primitive, nothing more.
package engine

import (
	"context"
)

// SessionConfig carries per-conversation settings into stream and
// resume calls.
type SessionConfig struct {
	// ThreadID scopes the engine's conversation context. The
	// coordinator rotates it after every resume.
	ThreadID string `json:"thread_id"`
}

// DecisionType tags a human decision on one pending action.
type DecisionType string

const (
	DecisionApprove DecisionType = "approve"
	DecisionReject  DecisionType = "reject"
)

// Decision is one positional entry in the list passed to Resume. Order
// must match the interrupt's action requests exactly.
type Decision struct {
	Type DecisionType `json:"type"`
}

// ActionRequest is one gated tool call awaiting human approval.
type ActionRequest struct {
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
}

// Interrupt is an engine-issued pause point carrying the actions that
// need approval before execution continues.
type Interrupt struct {
	ID             string          `json:"id"`
	ActionRequests []ActionRequest `json:"action_requests"`
}

// Role distinguishes message kinds within a step.
type Role string

const (
	RoleAssistant Role = "ai"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation announced by an assistant message. The
// ID ties the later tool-result message back to these arguments.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Message is one message inside a step update.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls is populated on assistant messages that announce
	// tool invocations.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolName and ToolCallID are populated on tool-result messages.
	ToolName   string `json:"tool_name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Step is one yielded unit of an engine invocation. Exactly one of the
// fields is meaningful: a batch of messages, an interrupt, or an
// engine-level error that ends the stream.
type Step struct {
	Messages  []Message
	Interrupt *Interrupt
	Err       error
}

// Engine is the streaming agent engine. Both calls are single-pass:
// the returned channel is closed when the invocation completes, and
// each step is fully consumed before the engine produces the next one.
type Engine interface {
	Stream(ctx context.Context, input string, cfg SessionConfig) (<-chan Step, error)
	Resume(ctx context.Context, interruptID string, decisions []Decision, cfg SessionConfig) (<-chan Step, error)
}

// Package session owns the conversation turn state machine: running a
// turn, pausing on an approval interrupt, collecting human decisions,
// resuming the engine with exactly those decisions, and rotating the
// thread afterwards.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aidekit/aide/internal/engine"
)

// State is the coordinator's phase in the turn lifecycle.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateResuming State = "resuming"
)

// TurnState is the transient state of one conversation turn. It is
// created when a user message starts a turn and cleared when the turn
// completes, resumes, or is cancelled; nothing in it is durable.
type TurnState struct {
	ThreadID string

	// InterruptID and ActionRequests are set while the turn is
	// paused. The action request list is fixed at pause time; the
	// decision map is keyed by position into it.
	InterruptID    string
	ActionRequests []engine.ActionRequest
	Decisions      map[int]engine.DecisionType

	// LastMeetingID references the meeting persisted earlier in the
	// turn, so a subsequently gated email can be linked to it.
	LastMeetingID string
}

// AllDecided reports whether every pending action has a decision.
func (t *TurnState) AllDecided() bool {
	return len(t.ActionRequests) > 0 && len(t.Decisions) == len(t.ActionRequests)
}

// DecisionList converts the decision map to the positionally-ordered
// list the engine's resume primitive expects. Undecided indexes fall
// back to reject; callers gate on AllDecided first.
func (t *TurnState) DecisionList() []engine.Decision {
	out := make([]engine.Decision, len(t.ActionRequests))
	for i := range t.ActionRequests {
		d, ok := t.Decisions[i]
		if !ok {
			d = engine.DecisionReject
		}
		out[i] = engine.Decision{Type: d}
	}
	return out
}

// Role tags transcript messages.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// newMessage builds a transcript entry; blank content yields a zero
// message the caller drops.
func newMessage(role Role, content string) (Message, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, false
	}
	return Message{
		ID:        shortID(8),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}, true
}

// NewThreadID generates a fresh conversation thread identifier.
func NewThreadID() string {
	return "thread_" + shortID(10)
}

func shortID(n int) string {
	s := strings.ReplaceAll(uuid.New().String(), "-", "")
	if len(s) > n {
		s = s[:n]
	}
	return s
}

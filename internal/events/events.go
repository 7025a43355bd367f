// Package events normalizes the engine's raw step stream into a small
// set of semantic events the coordinator can act on.
package events

import (
	"github.com/aidekit/aide/internal/classify"
	"github.com/aidekit/aide/internal/engine"
)

// Type enumerates the semantic event kinds.
type Type string

const (
	// TypeMessage is assistant-authored text, forwarded verbatim.
	TypeMessage Type = "message"
	// TypeToolUse is any tool invocation result. Always emitted,
	// even when further classified, so consumers can show progress.
	TypeToolUse Type = "tool_use"
	// TypeEmailSent is a tool invocation classified as email-related.
	TypeEmailSent Type = "email_sent"
	// TypeMeetingSaved is a tool invocation classified as
	// calendar-related.
	TypeMeetingSaved Type = "meeting_saved"
	// TypeInterrupt is an engine pause point awaiting approval.
	TypeInterrupt Type = "interrupt"
	// TypeError is an engine-level failure, already mapped to a
	// user-facing message.
	TypeError Type = "error"
)

// Event is one normalized occurrence in a turn. Which fields are set
// depends on Type.
type Event struct {
	Type Type

	// Content carries message text or the user-facing error text.
	Content string

	// Tool and Args describe the invocation for tool_use,
	// email_sent and meeting_saved events. Args are the originally
	// requested arguments, matched by invocation ID.
	Tool string
	Args map[string]any

	// Email holds the extracted fields for email_sent events.
	Email classify.EmailFields

	// Meeting holds the extracted fields for meeting_saved events.
	Meeting classify.MeetingFields

	// InterruptID and ActionRequests are set on interrupt events.
	// ActionRequests are passed through unchanged.
	InterruptID    string
	ActionRequests []engine.ActionRequest

	// Recoverable reports whether the turn can simply be retried
	// after an error event.
	Recoverable bool
}

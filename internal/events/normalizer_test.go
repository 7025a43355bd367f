package events

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aidekit/aide/internal/classify"
	"github.com/aidekit/aide/internal/engine"
	"github.com/aidekit/aide/internal/engine/scripted"
)

func collect(ch <-chan Event) []Event {
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func newNormalizer(eng engine.Engine) *Normalizer {
	return New(eng, classify.New(classify.DefaultKeywords()), nil)
}

func TestStreamEmptyInput(t *testing.T) {
	n := newNormalizer(scripted.New())
	got := collect(n.Stream(context.Background(), "   ", engine.SessionConfig{ThreadID: "t1"}))
	if len(got) != 1 || got[0].Type != TypeError {
		t.Fatalf("got %+v, want single error event", got)
	}
}

func TestStreamClassifiesToolUse(t *testing.T) {
	eng := scripted.New().Enqueue(
		scripted.AssistantStep("Scheduling now.", engine.ToolCall{
			ID:   "call-1",
			Name: "create_calendar_event",
			Args: map[string]any{
				"title":          "Planning",
				"start_datetime": "2026-02-10T14:00:00",
				"end_datetime":   "2026-02-10T15:00:00",
				"attendees":      []any{"alice@example.com"},
			},
		}),
		scripted.ToolStep("create_calendar_event", "call-1", "Event created"),
		scripted.AssistantStep("Done! The meeting is on the calendar."),
	)

	got := collect(newNormalizer(eng).Stream(context.Background(), "schedule it", engine.SessionConfig{ThreadID: "t1"}))

	var types []Type
	for _, ev := range got {
		types = append(types, ev.Type)
	}
	want := []Type{TypeMessage, TypeToolUse, TypeMeetingSaved, TypeMessage}
	if len(types) != len(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event types = %v, want %v", types, want)
		}
	}

	meeting := got[2].Meeting
	if meeting.Title != "Planning" || meeting.Date != "2026-02-10" || meeting.Start != "14:00" {
		t.Errorf("meeting fields = %+v", meeting)
	}
	if len(meeting.Attendees) != 1 || meeting.Attendees[0] != "alice@example.com" {
		t.Errorf("attendees = %v", meeting.Attendees)
	}

	// Args must come from the announced call, matched by ID.
	if got[1].Args["title"] != "Planning" {
		t.Errorf("tool_use args not matched from pending call table: %v", got[1].Args)
	}
}

func TestStreamEmailEvent(t *testing.T) {
	eng := scripted.New().Enqueue(
		scripted.AssistantStep("", engine.ToolCall{
			ID:   "call-9",
			Name: "send_gmail_message",
			Args: map[string]any{"to": "bob@example.com", "subject": "Update", "body": "Hello"},
		}),
		scripted.ToolStep("send_gmail_message", "call-9", "Message sent, id: 5"),
	)

	got := collect(newNormalizer(eng).Stream(context.Background(), "email bob", engine.SessionConfig{}))
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[1].Type != TypeEmailSent {
		t.Fatalf("second event = %v, want email_sent", got[1].Type)
	}
	if got[1].Email.To != "bob@example.com" || got[1].Email.Subject != "Update" {
		t.Errorf("email fields = %+v", got[1].Email)
	}
}

func TestStreamInterrupt(t *testing.T) {
	req := engine.ActionRequest{
		ToolName: "send_email",
		Args:     map[string]any{"to": "carol@example.com"},
	}
	eng := scripted.New().Enqueue(
		scripted.AssistantStep("I need approval before sending."),
		scripted.InterruptStep("intr-7", req),
	)

	got := collect(newNormalizer(eng).Stream(context.Background(), "send it", engine.SessionConfig{}))
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	intr := got[1]
	if intr.Type != TypeInterrupt || intr.InterruptID != "intr-7" {
		t.Fatalf("interrupt event = %+v", intr)
	}
	if len(intr.ActionRequests) != 1 || intr.ActionRequests[0].ToolName != "send_email" {
		t.Errorf("action requests not passed through unchanged: %+v", intr.ActionRequests)
	}
}

func TestStreamInterruptWithoutID(t *testing.T) {
	eng := scripted.New().Enqueue(scripted.InterruptStep(""))
	got := collect(newNormalizer(eng).Stream(context.Background(), "go", engine.SessionConfig{}))
	if len(got) != 1 || got[0].Type != TypeInterrupt {
		t.Fatalf("got %+v", got)
	}
	if got[0].InterruptID == "" {
		t.Error("missing interrupt ID was not synthesized")
	}
}

func TestResumeStream(t *testing.T) {
	eng := scripted.New().OnResume("intr-1",
		scripted.AssistantStep("", engine.ToolCall{
			ID:   "call-2",
			Name: "send_email",
			Args: map[string]any{"to": "dave@example.com", "subject": "Approved"},
		}),
		scripted.ToolStep("send_email", "call-2", "sent"),
		scripted.AssistantStep("All done."),
	)

	decisions := []engine.Decision{{Type: engine.DecisionApprove}}
	got := collect(newNormalizer(eng).Resume(context.Background(), "intr-1", decisions, engine.SessionConfig{}))

	if eng.ResumeCalls != 1 {
		t.Fatalf("ResumeCalls = %d, want 1", eng.ResumeCalls)
	}
	if len(eng.LastDecisions) != 1 || eng.LastDecisions[0].Type != engine.DecisionApprove {
		t.Errorf("decisions passed to engine = %+v", eng.LastDecisions)
	}

	var sawEmail, sawMessage bool
	for _, ev := range got {
		switch ev.Type {
		case TypeEmailSent:
			sawEmail = true
		case TypeMessage:
			sawMessage = true
		}
	}
	if !sawEmail || !sawMessage {
		t.Errorf("resume events missing email_sent or message: %+v", got)
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"credential", errors.New("invalid credentials for provider"), "credentials"},
		{"token", errors.New("token expired"), "credentials"},
		{"rate limit", errors.New("HTTP 429 too many requests"), "Rate limit"},
		{"timeout", errors.New("context deadline exceeded"), "timed out"},
		{"generic", errors.New("boom"), "Agent error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := CategorizeError(tt.err)
			if ev.Type != TypeError || !ev.Recoverable {
				t.Fatalf("event = %+v", ev)
			}
			if !strings.Contains(ev.Content, tt.want) {
				t.Errorf("Content = %q, want substring %q", ev.Content, tt.want)
			}
		})
	}

	t.Run("long message is truncated", func(t *testing.T) {
		ev := CategorizeError(errors.New(strings.Repeat("x", 500)))
		if len(ev.Content) > len("Agent error: ")+errPrefixLen {
			t.Errorf("error content not bounded: %d chars", len(ev.Content))
		}
	})
}

func TestStreamEngineError(t *testing.T) {
	eng := scripted.New().Enqueue(
		scripted.AssistantStep("Working on it."),
		scripted.ErrorStep(errors.New("rate limit exceeded")),
	)
	got := collect(newNormalizer(eng).Stream(context.Background(), "go", engine.SessionConfig{}))
	last := got[len(got)-1]
	if last.Type != TypeError {
		t.Fatalf("last event = %+v, want error", last)
	}
	if !strings.Contains(last.Content, "Rate limit") {
		t.Errorf("Content = %q", last.Content)
	}
}

package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aidekit/aide/internal/classify"
	"github.com/aidekit/aide/internal/engine"
)

// Normalizer drives one engine invocation at a time and classifies its
// steps into Events. Each returned channel is finite, single-pass and
// closed when the underlying invocation completes.
type Normalizer struct {
	engine     engine.Engine
	classifier *classify.Classifier
	logger     *slog.Logger
}

// New creates a Normalizer over the given engine.
func New(eng engine.Engine, classifier *classify.Classifier, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{engine: eng, classifier: classifier, logger: logger}
}

// Stream starts a fresh engine invocation for the user input and
// returns its semantic events.
func (n *Normalizer) Stream(ctx context.Context, input string, cfg engine.SessionConfig) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)

		if strings.TrimSpace(input) == "" {
			emit(ctx, out, Event{Type: TypeError, Content: "Empty input.", Recoverable: true})
			return
		}

		steps, err := n.engine.Stream(ctx, strings.TrimSpace(input), cfg)
		if err != nil {
			emit(ctx, out, CategorizeError(err))
			return
		}
		n.pump(ctx, steps, out)
	}()
	return out
}

// Resume continues a paused invocation with the collected decisions and
// returns its semantic events.
func (n *Normalizer) Resume(ctx context.Context, interruptID string, decisions []engine.Decision, cfg engine.SessionConfig) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)

		steps, err := n.engine.Resume(ctx, interruptID, decisions, cfg)
		if err != nil {
			emit(ctx, out, CategorizeError(err))
			return
		}
		n.pump(ctx, steps, out)
	}()
	return out
}

// pump consumes engine steps and emits normalized events. pendingCalls
// maps announced tool call IDs to their requested arguments so that the
// later tool-result message can be paired with them.
func (n *Normalizer) pump(ctx context.Context, steps <-chan engine.Step, out chan<- Event) {
	pendingCalls := make(map[string]engine.ToolCall)

	for step := range steps {
		if step.Err != nil {
			n.logger.Error("engine stream failed", "error", step.Err)
			if !emit(ctx, out, CategorizeError(step.Err)) {
				return
			}
			continue
		}

		if intr := step.Interrupt; intr != nil {
			id := intr.ID
			if id == "" {
				id = fmt.Sprintf("intr_%d", time.Now().UnixNano())
			}
			if !emit(ctx, out, Event{
				Type:           TypeInterrupt,
				InterruptID:    id,
				ActionRequests: intr.ActionRequests,
			}) {
				return
			}
			continue
		}

		for _, msg := range step.Messages {
			switch msg.Role {
			case engine.RoleAssistant:
				if content := strings.TrimSpace(msg.Content); content != "" {
					if !emit(ctx, out, Event{Type: TypeMessage, Content: content}) {
						return
					}
				}
				for _, call := range msg.ToolCalls {
					if call.ID != "" {
						pendingCalls[call.ID] = call
					}
				}

			case engine.RoleTool:
				var args map[string]any
				if call, ok := pendingCalls[msg.ToolCallID]; ok {
					args = call.Args
					delete(pendingCalls, msg.ToolCallID)
				}

				// Always surface the raw invocation; the
				// classified events below are best-effort
				// extras.
				if !emit(ctx, out, Event{Type: TypeToolUse, Tool: msg.ToolName, Args: args}) {
					return
				}

				switch n.classifier.Classify(msg.ToolName, msg.Content, args) {
				case classify.Email:
					fields := classify.ExtractEmail(args)
					n.logger.Info("email_sent event", "to", fields.To, "subject", fields.Subject)
					if !emit(ctx, out, Event{Type: TypeEmailSent, Tool: msg.ToolName, Args: args, Email: fields}) {
						return
					}
				case classify.Meeting:
					fields := classify.ExtractMeeting(args)
					n.logger.Info("meeting_saved event", "title", fields.Title, "date", fields.Date)
					if !emit(ctx, out, Event{Type: TypeMeetingSaved, Tool: msg.ToolName, Args: args, Meeting: fields}) {
						return
					}
				}
			}
		}
	}
}

// emit sends an event unless the context is done. Returns false when
// the consumer has gone away.
func emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// errPrefixLen bounds how much raw engine error text reaches the user.
const errPrefixLen = 200

// CategorizeError maps an engine failure to a user-facing error event
// without exposing raw internals beyond a bounded prefix.
func CategorizeError(err error) Event {
	msg := err.Error()
	low := strings.ToLower(msg)

	var content string
	switch {
	case strings.Contains(low, "credential") || strings.Contains(low, "token"):
		content = "Provider credentials error. Reconnect in Settings."
	case strings.Contains(low, "rate limit") || strings.Contains(msg, "429"):
		content = "Rate limit reached. Please wait before retrying."
	case strings.Contains(low, "timeout") || strings.Contains(low, "deadline exceeded"):
		content = "Request timed out. Try again."
	default:
		if len(msg) > errPrefixLen {
			msg = msg[:errPrefixLen]
		}
		content = "Agent error: " + msg
	}
	return Event{Type: TypeError, Content: content, Recoverable: true}
}

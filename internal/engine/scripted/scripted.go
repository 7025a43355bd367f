// Package scripted implements engine.Engine as a deterministic replay
// of pre-built steps. It backs tests and the demo serve mode; the real
// planning engine lives outside this repository.
package scripted

import (
	"context"
	"fmt"
	"sync"

	"github.com/aidekit/aide/internal/engine"
)

// Engine replays a fixed script per invocation. Stream consumes the
// next queued script; Resume replays the script registered for the
// interrupt ID.
type Engine struct {
	mu      sync.Mutex
	scripts [][]engine.Step
	resumes map[string][]engine.Step

	// LastDecisions records the decisions passed to the most recent
	// Resume call, for assertions.
	LastDecisions []engine.Decision

	// StreamCalls and ResumeCalls count invocations.
	StreamCalls int
	ResumeCalls int
}

// New returns an empty scripted engine.
func New() *Engine {
	return &Engine{resumes: make(map[string][]engine.Step)}
}

// Enqueue adds a script to be replayed by the next unserved Stream
// call.
func (e *Engine) Enqueue(steps ...engine.Step) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts = append(e.scripts, steps)
	return e
}

// OnResume registers the script replayed when Resume is called with the
// given interrupt ID.
func (e *Engine) OnResume(interruptID string, steps ...engine.Step) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resumes[interruptID] = steps
	return e
}

// Stream replays the next queued script.
func (e *Engine) Stream(ctx context.Context, input string, cfg engine.SessionConfig) (<-chan engine.Step, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.StreamCalls++
	if len(e.scripts) == 0 {
		return nil, fmt.Errorf("scripted: no script queued for input %q", input)
	}
	steps := e.scripts[0]
	e.scripts = e.scripts[1:]
	return replay(ctx, steps), nil
}

// Resume replays the script registered for the interrupt ID.
func (e *Engine) Resume(ctx context.Context, interruptID string, decisions []engine.Decision, cfg engine.SessionConfig) (<-chan engine.Step, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ResumeCalls++
	e.LastDecisions = append([]engine.Decision(nil), decisions...)
	steps, ok := e.resumes[interruptID]
	if !ok {
		return nil, fmt.Errorf("scripted: unknown interrupt %q", interruptID)
	}
	return replay(ctx, steps), nil
}

// replay feeds steps one at a time, honoring cancellation. The channel
// is unbuffered so each step is consumed before the next is produced.
func replay(ctx context.Context, steps []engine.Step) <-chan engine.Step {
	ch := make(chan engine.Step)
	go func() {
		defer close(ch)
		for _, step := range steps {
			select {
			case ch <- step:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// AssistantStep builds a step with a single assistant message.
func AssistantStep(content string, calls ...engine.ToolCall) engine.Step {
	return engine.Step{Messages: []engine.Message{{
		Role:      engine.RoleAssistant,
		Content:   content,
		ToolCalls: calls,
	}}}
}

// ToolStep builds a step with a single tool-result message.
func ToolStep(name, callID, result string) engine.Step {
	return engine.Step{Messages: []engine.Message{{
		Role:       engine.RoleTool,
		Content:    result,
		ToolName:   name,
		ToolCallID: callID,
	}}}
}

// InterruptStep builds a step carrying an interrupt.
func InterruptStep(id string, requests ...engine.ActionRequest) engine.Step {
	return engine.Step{Interrupt: &engine.Interrupt{ID: id, ActionRequests: requests}}
}

// ErrorStep builds a step carrying an engine-level error.
func ErrorStep(err error) engine.Step {
	return engine.Step{Err: err}
}

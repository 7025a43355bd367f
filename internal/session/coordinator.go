package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aidekit/aide/internal/classify"
	"github.com/aidekit/aide/internal/engine"
	"github.com/aidekit/aide/internal/events"
	"github.com/aidekit/aide/internal/models"
	"github.com/aidekit/aide/internal/recorder"
	"github.com/aidekit/aide/internal/store"
)

var (
	// ErrBusy reports that a turn is already running or paused.
	ErrBusy = errors.New("session: a turn is already in progress")
	// ErrNotPaused reports that no interrupt is awaiting decisions.
	ErrNotPaused = errors.New("session: no pending approval")
	// ErrIncompleteDecisions reports that not every pending action
	// has been decided.
	ErrIncompleteDecisions = errors.New("session: every pending action needs a decision before resuming")
)

// meetingDedupWindow collapses repeated agent meeting saves for the
// same title and date.
const meetingDedupWindow = 30 * time.Second

// Auditor receives activity log entries. The sqlite audit log
// implements it; tests use a no-op.
type Auditor interface {
	Record(level, message string)
}

// TurnResult summarizes one HandleMessage or SubmitDecisions call.
type TurnResult struct {
	// Reply is the assistant's accumulated text response.
	Reply string `json:"reply"`
	// ToolsUsed lists tool names invoked during the turn.
	ToolsUsed []string `json:"tools_used,omitempty"`
	// Paused is true when the turn stopped at an approval interrupt.
	Paused bool `json:"paused"`
	// InterruptID and Pending describe the interrupt when paused.
	InterruptID string                 `json:"interrupt_id,omitempty"`
	Pending     []engine.ActionRequest `json:"pending,omitempty"`
	// ErrorText is the user-facing message for an engine failure.
	ErrorText string `json:"error,omitempty"`
}

// Coordinator drives conversation turns. One logical turn runs at a
// time; a second message while running or paused is refused rather
// than queued.
type Coordinator struct {
	normalizer *events.Normalizer
	recorder   *recorder.Recorder
	store      *store.Store
	classifier *classify.Classifier
	audit      Auditor
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	state    State
	threadID string
	turn     *TurnState
	messages []Message
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithAuditor attaches an activity log.
func WithAuditor(a Auditor) Option {
	return func(c *Coordinator) { c.audit = a }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a Coordinator with a fresh thread identifier.
func New(n *events.Normalizer, rec *recorder.Recorder, st *store.Store, cl *classify.Classifier, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		normalizer: n,
		recorder:   rec,
		store:      st,
		classifier: cl,
		logger:     logger,
		now:        time.Now,
		state:      StateIdle,
		threadID:   NewThreadID(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the coordinator's current phase.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ThreadID returns the current conversation thread identifier.
func (c *Coordinator) ThreadID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadID
}

// Messages returns a copy of the transcript.
func (c *Coordinator) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Pending returns the outstanding interrupt, its action requests and
// the decisions collected so far. ok is false when nothing is paused.
func (c *Coordinator) Pending() (interruptID string, requests []engine.ActionRequest, decisions map[int]engine.DecisionType, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused || c.turn == nil {
		return "", nil, nil, false
	}
	decisions = make(map[int]engine.DecisionType, len(c.turn.Decisions))
	for k, v := range c.turn.Decisions {
		decisions[k] = v
	}
	return c.turn.InterruptID, append([]engine.ActionRequest(nil), c.turn.ActionRequests...), decisions, true
}

// HandleMessage runs one turn for the user input. It blocks until the
// engine stream completes, errors, or pauses on an interrupt.
func (c *Coordinator) HandleMessage(ctx context.Context, input string) (*TurnResult, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.state = StateRunning
	c.turn = &TurnState{
		ThreadID:  c.threadID,
		Decisions: make(map[int]engine.DecisionType),
	}
	c.appendMessageLocked(RoleUser, input)
	cfg := engine.SessionConfig{ThreadID: c.threadID}
	c.mu.Unlock()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := &TurnResult{}
	var reply strings.Builder
	calendarUsed := false

	for ev := range c.normalizer.Stream(streamCtx, input, cfg) {
		if result.Paused || result.ErrorText != "" {
			continue // drain after pause or failure
		}
		switch ev.Type {
		case events.TypeMessage:
			appendText(&reply, ev.Content)

		case events.TypeToolUse:
			result.ToolsUsed = append(result.ToolsUsed, ev.Tool)
			if c.classifier.IsCalendarTool(ev.Tool) {
				calendarUsed = true
			}

		case events.TypeMeetingSaved:
			c.persistAgentMeeting(ev.Meeting)

		case events.TypeEmailSent:
			c.recordAgentEmail(ctx, ev.Email)

		case events.TypeInterrupt:
			if len(ev.ActionRequests) == 0 {
				// Nothing to decide; pausing here would leave
				// no path back to Idle except cancel.
				c.record("WARNING", "interrupt carried no action requests, continuing")
				continue
			}
			c.pause(ev, reply.String(), result.ToolsUsed)
			result.Paused = true
			result.InterruptID = ev.InterruptID
			result.Pending = ev.ActionRequests
			reply.Reset()
			cancel() // abandon the engine stream at the pause point

		case events.TypeError:
			result.ErrorText = ev.Content
			c.record("ERROR", "agent error: "+ev.Content)
		}
	}

	if !result.Paused && result.ErrorText == "" && calendarUsed {
		c.mu.Lock()
		saved := c.turn != nil && c.turn.LastMeetingID != ""
		c.mu.Unlock()
		if !saved {
			if fields, ok := meetingFromReply(reply.String(), input, c.now()); ok {
				c.persistAgentMeeting(fields)
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if result.Paused {
		// pause already flushed the transcript and set state.
		return result, nil
	}

	result.Reply = reply.String()
	for _, tool := range result.ToolsUsed {
		c.appendMessageLocked(RoleTool, "Tool used: "+tool)
	}
	if result.ErrorText != "" {
		c.appendMessageLocked(RoleAssistant, result.ErrorText)
	} else {
		c.appendMessageLocked(RoleAssistant, result.Reply)
	}
	c.state = StateIdle
	c.turn = nil
	return result, nil
}

// pause freezes the turn at an interrupt: flush accumulated output,
// store the action requests with an empty decision map, and hand
// control to the human reviewer. The action request list is fixed here
// and never changes before resume.
func (c *Coordinator) pause(ev events.Event, flushedReply string, tools []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.appendMessageLocked(RoleAssistant, flushedReply)
	for _, tool := range tools {
		c.appendMessageLocked(RoleTool, "Tool used: "+tool)
	}
	c.appendMessageLocked(RoleSystem, "Agent paused, awaiting your approval")

	c.turn.InterruptID = ev.InterruptID
	c.turn.ActionRequests = append([]engine.ActionRequest(nil), ev.ActionRequests...)
	c.turn.Decisions = make(map[int]engine.DecisionType)
	c.state = StatePaused
	c.record("WARNING", fmt.Sprintf("%d action(s) awaiting approval", len(ev.ActionRequests)))
}

// Decide records the human decision for one pending action by
// positional index. Re-deciding an index overwrites the earlier choice
// until decisions are submitted.
func (c *Coordinator) Decide(index int, decision engine.DecisionType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused || c.turn == nil {
		return ErrNotPaused
	}
	if index < 0 || index >= len(c.turn.ActionRequests) {
		return fmt.Errorf("session: action index %d out of range [0,%d)", index, len(c.turn.ActionRequests))
	}
	if decision != engine.DecisionApprove && decision != engine.DecisionReject {
		return fmt.Errorf("session: unknown decision %q", decision)
	}
	c.turn.Decisions[index] = decision
	c.record("INFO", fmt.Sprintf("decision [%d]: %s", index, decision))
	return nil
}

// SubmitDecisions applies the collected decisions and resumes the
// engine. Gated email actions are recorded (and, when approved, sent)
// here: a rejected action's tool call never executes engine-side, and
// an approved one is intercepted by the approval gate, so in both
// cases delivery responsibility sits with the coordinator.
func (c *Coordinator) SubmitDecisions(ctx context.Context) (*TurnResult, error) {
	c.mu.Lock()
	if c.state != StatePaused || c.turn == nil {
		c.mu.Unlock()
		return nil, ErrNotPaused
	}
	if !c.turn.AllDecided() {
		c.mu.Unlock()
		return nil, ErrIncompleteDecisions
	}
	turn := c.turn
	c.state = StateResuming
	cfg := engine.SessionConfig{ThreadID: turn.ThreadID}
	c.mu.Unlock()

	decisions := turn.DecisionList()
	anyApproved := false
	for i, req := range turn.ActionRequests {
		approved := decisions[i].Type == engine.DecisionApprove
		if approved {
			anyApproved = true
		}
		c.recordGatedAction(ctx, req, approved, turn.LastMeetingID)
	}

	if turn.LastMeetingID != "" {
		status := models.MeetingRejected
		if anyApproved {
			status = models.MeetingApproved
		}
		c.setMeetingStatus(turn.LastMeetingID, status)
	}

	result := c.resume(ctx, turn, decisions, cfg)

	// Rotate the thread whether the resume succeeded or failed: the
	// engine's post-resume context on the old thread is unreliable
	// for a subsequent fresh message.
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threadID = NewThreadID()
	c.turn = nil
	c.state = StateIdle
	c.record("INFO", "new thread started after approval round")

	for _, tool := range result.ToolsUsed {
		c.appendMessageLocked(RoleTool, "Tool used: "+tool)
	}
	if result.ErrorText != "" {
		c.appendMessageLocked(RoleAssistant, result.ErrorText)
	} else {
		c.appendMessageLocked(RoleAssistant, result.Reply)
	}
	return result, nil
}

// resume drives the engine's resumed stream. Email sends encountered
// here are recorded like chat-path sends; meeting and tool events are
// ignored for persistence because they replay the action already
// persisted before the pause.
func (c *Coordinator) resume(ctx context.Context, turn *TurnState, decisions []engine.Decision, cfg engine.SessionConfig) *TurnResult {
	result := &TurnResult{}
	var reply strings.Builder

	for ev := range c.normalizer.Resume(ctx, turn.InterruptID, decisions, cfg) {
		if result.ErrorText != "" {
			continue
		}
		switch ev.Type {
		case events.TypeMessage:
			appendText(&reply, ev.Content)

		case events.TypeEmailSent:
			c.recordAgentEmail(ctx, ev.Email)

		case events.TypeMeetingSaved:
			c.record("INFO", "resume: meeting event ignored (already persisted before pause)")

		case events.TypeToolUse:
			result.ToolsUsed = append(result.ToolsUsed, ev.Tool)

		case events.TypeError:
			result.ErrorText = ev.Content
			c.record("ERROR", "resume error: "+ev.Content)
		}
	}
	result.Reply = reply.String()
	return result
}

// Cancel discards all pending decisions. No side effects are recorded
// for any pending action and the engine-side call is abandoned. The
// thread still rotates: the abandoned interrupt leaves the old thread's
// context unusable for a fresh message.
func (c *Coordinator) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused || c.turn == nil {
		return ErrNotPaused
	}
	c.turn = nil
	c.state = StateIdle
	c.threadID = NewThreadID()
	c.appendMessageLocked(RoleSystem, "Pending actions discarded")
	c.record("INFO", "approval round cancelled, no side effects recorded")
	return nil
}

// ClearSession resets the transcript and rotates the thread. Refused
// while a turn is in flight.
func (c *Coordinator) ClearSession() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning || c.state == StateResuming {
		return ErrBusy
	}
	c.messages = nil
	c.turn = nil
	c.state = StateIdle
	c.threadID = NewThreadID()
	c.record("INFO", "session cleared")
	return nil
}

// ScheduleMeeting persists a manually scheduled meeting and, when
// sendInvites is set, direct-sends the invitation to every attendee.
func (c *Coordinator) ScheduleMeeting(ctx context.Context, m models.Meeting, sendInvites bool) (models.Meeting, error) {
	if m.ID == "" {
		m = models.NewMeeting(m.Title, m.Date, m.StartTime, m.EndTime, m.Location, m.Attendees, models.SourceScheduler)
	}
	if m.EmailSubject == "" {
		m.EmailSubject = "Meeting Invitation: " + m.Title
	}
	if m.EmailBody == "" {
		m.EmailBody = classify.InvitationBody(m.Title, m.Date, m.StartTime, m.EndTime, m.Location)
	}
	if err := c.store.AppendMeeting(m); err != nil {
		return models.Meeting{}, fmt.Errorf("failed to persist meeting: %w", err)
	}
	c.record("INFO", "meeting scheduled: "+m.Title)

	if sendInvites && len(m.Attendees) > 0 {
		c.recorder.SendAndSaveBulk(ctx, m.Attendees, recorder.Request{
			Subject:   m.EmailSubject,
			Body:      m.EmailBody,
			Source:    models.SourceScheduler,
			Approval:  recorder.ApprovalApproved,
			MeetingID: m.ID,
			Mode:      recorder.DirectSend,
		})
	}
	return m, nil
}

// persistAgentMeeting saves a meeting extracted from an agent tool
// call, in status Pending, and remembers it as the turn's last saved
// meeting for later linkage.
func (c *Coordinator) persistAgentMeeting(fields classify.MeetingFields) {
	title := fields.Title
	if title == "" {
		title = "Meeting from Agent"
	}
	date := fields.Date
	if date == "" {
		date = c.now().Format("2006-01-02")
	}
	if c.isDuplicateMeeting(title, date) {
		c.record("INFO", "duplicate meeting skipped: "+title)
		return
	}

	start := fields.Start
	if start == "" {
		start = "00:00"
	}
	end := fields.End
	if end == "" {
		end = "01:00"
	}

	m := models.NewMeeting(title, date, start, end, fields.Location, fields.Attendees, models.SourceAgent)
	m.EmailSubject = fields.EmailSubject
	m.EmailBody = fields.EmailBody
	if err := c.store.AppendMeeting(m); err != nil {
		c.logger.Error("failed to persist meeting", "title", title, "error", err)
		c.record("ERROR", "meeting save failed: "+err.Error())
		return
	}

	c.mu.Lock()
	if c.turn != nil {
		c.turn.LastMeetingID = m.ID
	}
	c.mu.Unlock()
	c.record("INFO", fmt.Sprintf("meeting saved: %s on %s", title, date))
}

// recordAgentEmail records an email the agent reported sending during
// chat or resume. Chat-path sends are not gated; delivery is performed
// here so the audit record reflects the actual outcome.
func (c *Coordinator) recordAgentEmail(ctx context.Context, fields classify.EmailFields) {
	c.mu.Lock()
	meetingID := ""
	if c.turn != nil {
		meetingID = c.turn.LastMeetingID
	}
	c.mu.Unlock()

	res := c.recorder.SendAndSave(ctx, recorder.Request{
		To:        fields.To,
		Subject:   fields.Subject,
		Body:      fields.Body,
		Source:    models.SourceAgent,
		Approval:  recorder.ApprovalApproved,
		MeetingID: meetingID,
		Mode:      recorder.DirectSend,
	})
	c.record("INFO", fmt.Sprintf("agent email recorded: sent=%t to=%s", res.Sent, fields.To))
}

// recordGatedAction records the outcome of one gated action request
// according to its human decision.
func (c *Coordinator) recordGatedAction(ctx context.Context, req engine.ActionRequest, approved bool, meetingID string) {
	if !c.classifier.IsEmailTool(req.ToolName) {
		return
	}
	fields := classify.ExtractEmail(req.Args)
	if fields.To == "" && fields.Subject == "" {
		return
	}
	to := fields.To
	if to == "" {
		to = "Unknown"
	}
	subject := fields.Subject
	if subject == "" {
		subject = "Meeting Invitation"
	}

	approval := recorder.ApprovalRejected
	if approved {
		approval = recorder.ApprovalApproved
	}
	res := c.recorder.SendAndSave(ctx, recorder.Request{
		To:        to,
		Subject:   subject,
		Body:      fields.Body,
		Source:    models.SourceHITL,
		Approval:  approval,
		MeetingID: meetingID,
		Mode:      recorder.DirectSend,
	})

	label := "Email rejected"
	if res.Sent {
		label = "Email sent"
	} else if approved {
		label = "Email recorded"
	}
	c.mu.Lock()
	c.appendMessageLocked(RoleSystem, fmt.Sprintf("%s: %s", label, to))
	c.mu.Unlock()
	c.record("INFO", fmt.Sprintf("approval %s | sent=%t | to=%s", approval, res.Sent, to))
}

// setMeetingStatus transitions the linked meeting and refreshes its
// updated timestamp. A meeting decided out of band while the turn was
// paused keeps its earlier decision.
func (c *Coordinator) setMeetingStatus(id string, status models.MeetingStatus) {
	ok, err := c.store.SetMeetingStatus(id, status)
	if errors.Is(err, store.ErrMeetingDecided) {
		c.record("WARNING", fmt.Sprintf("meeting %.8s already decided, keeping its status", id))
		return
	}
	if err != nil {
		c.logger.Error("failed to update meeting status", "id", id, "error", err)
		return
	}
	if ok {
		c.record("INFO", fmt.Sprintf("meeting %.8s -> %s", id, status))
	}
}

// isDuplicateMeeting reports whether a meeting with the same title and
// date was created within the dedup window.
func (c *Coordinator) isDuplicateMeeting(title, date string) bool {
	cutoff := c.now().Add(-meetingDedupWindow)
	for _, m := range c.store.Meetings() {
		if m.Title == title && m.Date == date && !m.CreatedAt.Before(cutoff) {
			return true
		}
	}
	return false
}

// appendMessageLocked adds a transcript entry; the caller holds the
// mutex.
func (c *Coordinator) appendMessageLocked(role Role, content string) {
	if msg, ok := newMessage(role, content); ok {
		c.messages = append(c.messages, msg)
	}
}

// record forwards an entry to the audit log when one is attached.
func (c *Coordinator) record(level, message string) {
	if c.audit != nil {
		c.audit.Record(level, message)
	}
}

// appendText accumulates assistant text with paragraph separation.
func appendText(b *strings.Builder, text string) {
	if text == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString(text)
}

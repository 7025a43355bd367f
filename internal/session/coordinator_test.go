package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/aidekit/aide/internal/classify"
	"github.com/aidekit/aide/internal/engine"
	"github.com/aidekit/aide/internal/engine/scripted"
	"github.com/aidekit/aide/internal/events"
	"github.com/aidekit/aide/internal/models"
	"github.com/aidekit/aide/internal/recorder"
	"github.com/aidekit/aide/internal/store"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	fail  error
	calls int
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, to)
	return nil
}

type fixture struct {
	coord  *Coordinator
	engine *scripted.Engine
	sender *fakeSender
	store  *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sender := &fakeSender{}
	eng := scripted.New()
	cl := classify.New(classify.DefaultKeywords())
	rec := recorder.New(st, sender, logger)
	norm := events.New(eng, cl, logger)
	return &fixture{
		coord:  New(norm, rec, st, cl, logger),
		engine: eng,
		sender: sender,
		store:  st,
	}
}

func TestHandleMessagePlainReply(t *testing.T) {
	f := newFixture(t)
	f.engine.Enqueue(scripted.AssistantStep("Hello, how can I help?"))

	res, err := f.coord.HandleMessage(context.Background(), "hi")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if res.Paused {
		t.Fatal("unexpected pause")
	}
	if res.Reply != "Hello, how can I help?" {
		t.Errorf("Reply = %q", res.Reply)
	}
	if got := f.coord.State(); got != StateIdle {
		t.Errorf("State() = %q, want idle", got)
	}

	msgs := f.coord.Messages()
	if len(msgs) != 2 || msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Fatalf("transcript = %+v", msgs)
	}
}

func TestHandleMessageRefusedWhilePaused(t *testing.T) {
	f := newFixture(t)
	f.engine.Enqueue(scripted.InterruptStep("intr_1", engine.ActionRequest{
		ToolName: "send_email",
		Args:     map[string]any{"to": "bob@example.com", "subject": "Hi"},
	}))

	if _, err := f.coord.HandleMessage(context.Background(), "send it"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if _, err := f.coord.HandleMessage(context.Background(), "another"); !errors.Is(err, ErrBusy) {
		t.Fatalf("second HandleMessage() error = %v, want ErrBusy", err)
	}
}

func TestScheduleFlowPersistsMeeting(t *testing.T) {
	f := newFixture(t)
	f.engine.Enqueue(
		scripted.AssistantStep("Scheduling now.", engine.ToolCall{
			ID:   "call_1",
			Name: "create_calendar_event",
			Args: map[string]any{
				"title":        "Planning sync",
				"start":        "2026-09-01T14:00",
				"end":          "2026-09-01T15:00",
				"participants": []any{"alice@example.com"},
			},
		}),
		scripted.ToolStep("create_calendar_event", "call_1", "Success: event created"),
		scripted.AssistantStep("Done, the meeting is on the calendar."),
	)

	res, err := f.coord.HandleMessage(context.Background(), "Schedule a planning sync tomorrow at 2pm with alice@example.com")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if res.Paused {
		t.Fatal("unexpected pause")
	}
	if len(res.ToolsUsed) != 1 || res.ToolsUsed[0] != "create_calendar_event" {
		t.Errorf("ToolsUsed = %v", res.ToolsUsed)
	}

	meetings := f.store.Meetings()
	if len(meetings) != 1 {
		t.Fatalf("got %d meetings, want 1", len(meetings))
	}
	m := meetings[0]
	if m.Title != "Planning sync" || m.Date != "2026-09-01" || m.StartTime != "14:00" {
		t.Errorf("meeting = %+v", m)
	}
	if m.Status != models.MeetingPending {
		t.Errorf("Status = %q, want Pending", m.Status)
	}
	if m.Source != models.SourceAgent {
		t.Errorf("Source = %q, want agent", m.Source)
	}
}

func TestMeetingDedupWithinWindow(t *testing.T) {
	f := newFixture(t)
	script := func() {
		f.engine.Enqueue(
			scripted.AssistantStep("", engine.ToolCall{
				ID:   "call_1",
				Name: "create_calendar_event",
				Args: map[string]any{"title": "Standup", "date": "2026-09-02"},
			}),
			scripted.ToolStep("create_calendar_event", "call_1", "Success"),
			scripted.AssistantStep("Saved."),
		)
	}
	script()
	script()

	for i := 0; i < 2; i++ {
		if _, err := f.coord.HandleMessage(context.Background(), "schedule standup"); err != nil {
			t.Fatalf("HandleMessage() error = %v", err)
		}
	}
	if got := len(f.store.Meetings()); got != 1 {
		t.Errorf("got %d meetings, want 1 after dedup", got)
	}
}

func TestChatPathEmailDirectSends(t *testing.T) {
	f := newFixture(t)
	f.engine.Enqueue(
		scripted.AssistantStep("", engine.ToolCall{
			ID:   "call_1",
			Name: "send_email",
			Args: map[string]any{"to": "carol@example.com", "subject": "Notes", "body": "Attached."},
		}),
		scripted.ToolStep("send_email", "call_1", "Success: message id 42"),
		scripted.AssistantStep("Email sent."),
	)

	if _, err := f.coord.HandleMessage(context.Background(), "email carol the notes"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if f.sender.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", f.sender.calls)
	}
	emails := f.store.Emails()
	if len(emails) != 1 {
		t.Fatalf("got %d email records, want 1", len(emails))
	}
	if emails[0].Status != models.EmailSent || emails[0].To != "carol@example.com" {
		t.Errorf("record = %+v", emails[0])
	}
}

func pausedFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.engine.Enqueue(
		scripted.AssistantStep("I need approval first.", engine.ToolCall{
			ID:   "call_1",
			Name: "create_calendar_event",
			Args: map[string]any{"title": "Review", "date": "2026-09-03", "start_time": "10:00"},
		}),
		scripted.ToolStep("create_calendar_event", "call_1", "Success: created"),
		scripted.InterruptStep("intr_42",
			engine.ActionRequest{ToolName: "send_email", Args: map[string]any{
				"to": "dave@example.com", "subject": "Review invite", "body": "Please come.",
			}},
			engine.ActionRequest{ToolName: "send_email", Args: map[string]any{
				"to": "erin@example.com", "subject": "Review invite", "body": "Please come.",
			}},
		),
	)
	res, err := f.coord.HandleMessage(context.Background(), "schedule a review and invite dave and erin")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if !res.Paused || res.InterruptID != "intr_42" || len(res.Pending) != 2 {
		t.Fatalf("result = %+v, want pause with two pending actions", res)
	}
	return f
}

func TestSubmitDecisionsMixed(t *testing.T) {
	f := pausedFixture(t)
	f.engine.OnResume("intr_42", scripted.AssistantStep("Invitation handled."))

	if _, err := f.coord.SubmitDecisions(context.Background()); !errors.Is(err, ErrIncompleteDecisions) {
		t.Fatalf("SubmitDecisions() before deciding error = %v, want ErrIncompleteDecisions", err)
	}

	oldThread := f.coord.ThreadID()
	if err := f.coord.Decide(0, engine.DecisionApprove); err != nil {
		t.Fatalf("Decide(0) error = %v", err)
	}
	if err := f.coord.Decide(1, engine.DecisionReject); err != nil {
		t.Fatalf("Decide(1) error = %v", err)
	}

	res, err := f.coord.SubmitDecisions(context.Background())
	if err != nil {
		t.Fatalf("SubmitDecisions() error = %v", err)
	}
	if res.Reply != "Invitation handled." {
		t.Errorf("Reply = %q", res.Reply)
	}

	// Exactly one provider call: the rejected action never reaches
	// the provider.
	if f.sender.calls != 1 {
		t.Errorf("provider calls = %d, want 1", f.sender.calls)
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0] != "dave@example.com" {
		t.Errorf("sent to %v", f.sender.sent)
	}

	emails := f.store.Emails()
	if len(emails) != 2 {
		t.Fatalf("got %d email records, want 2", len(emails))
	}
	byTo := map[string]models.DeliveryStatus{}
	for _, e := range emails {
		byTo[e.To] = e.Status
		if e.Source != models.SourceHITL {
			t.Errorf("record %s source = %q, want hitl", e.To, e.Source)
		}
	}
	if byTo["dave@example.com"] != models.EmailSent {
		t.Errorf("dave status = %q, want sent", byTo["dave@example.com"])
	}
	if byTo["erin@example.com"] != models.EmailRejected {
		t.Errorf("erin status = %q, want rejected", byTo["erin@example.com"])
	}

	meetings := f.store.Meetings()
	if len(meetings) != 1 || meetings[0].Status != models.MeetingApproved {
		t.Fatalf("meeting status = %+v, want Approved", meetings)
	}

	if got := f.coord.ThreadID(); got == oldThread {
		t.Error("thread did not rotate after resume")
	}
	if f.coord.State() != StateIdle {
		t.Errorf("State() = %q, want idle", f.coord.State())
	}
	if len(f.engine.LastDecisions) != 2 ||
		f.engine.LastDecisions[0].Type != engine.DecisionApprove ||
		f.engine.LastDecisions[1].Type != engine.DecisionReject {
		t.Errorf("engine saw decisions %+v", f.engine.LastDecisions)
	}
}

func TestSubmitDecisionsAllRejected(t *testing.T) {
	f := pausedFixture(t)
	f.engine.OnResume("intr_42", scripted.AssistantStep("Understood, not sending."))

	for i := 0; i < 2; i++ {
		if err := f.coord.Decide(i, engine.DecisionReject); err != nil {
			t.Fatalf("Decide(%d) error = %v", i, err)
		}
	}
	if _, err := f.coord.SubmitDecisions(context.Background()); err != nil {
		t.Fatalf("SubmitDecisions() error = %v", err)
	}

	if f.sender.calls != 0 {
		t.Errorf("provider calls = %d, want 0", f.sender.calls)
	}
	for _, e := range f.store.Emails() {
		if e.Status != models.EmailRejected {
			t.Errorf("record %s status = %q, want rejected", e.To, e.Status)
		}
	}
	meetings := f.store.Meetings()
	if len(meetings) != 1 || meetings[0].Status != models.MeetingRejected {
		t.Fatalf("meeting = %+v, want Rejected", meetings)
	}
}

func TestResumeEmailEventsRecorded(t *testing.T) {
	f := pausedFixture(t)
	f.engine.OnResume("intr_42",
		scripted.AssistantStep("", engine.ToolCall{
			ID:   "call_2",
			Name: "send_email",
			Args: map[string]any{"to": "frank@example.com", "subject": "Follow-up"},
		}),
		scripted.ToolStep("send_email", "call_2", "Success: delivered"),
		scripted.AssistantStep("All done."),
	)

	for i := 0; i < 2; i++ {
		if err := f.coord.Decide(i, engine.DecisionApprove); err != nil {
			t.Fatalf("Decide(%d) error = %v", i, err)
		}
	}
	if _, err := f.coord.SubmitDecisions(context.Background()); err != nil {
		t.Fatalf("SubmitDecisions() error = %v", err)
	}

	var followUp models.EmailRecord
	for _, e := range f.store.Emails() {
		if e.To == "frank@example.com" {
			followUp = e
			break
		}
	}
	if followUp.ID == "" {
		t.Fatal("resume-stream email was not recorded")
	}
	if followUp.Source != models.SourceAgent || followUp.Status != models.EmailSent {
		t.Errorf("record = %+v", followUp)
	}
}

func TestGatedCalendarAndEmailPair(t *testing.T) {
	f := newFixture(t)
	f.engine.Enqueue(
		scripted.AssistantStep("", engine.ToolCall{
			ID:   "call_1",
			Name: "create_calendar_event",
			Args: map[string]any{"title": "Offsite", "date": "2026-09-05"},
		}),
		scripted.ToolStep("create_calendar_event", "call_1", "Success"),
		scripted.InterruptStep("intr_9",
			engine.ActionRequest{ToolName: "create_calendar_event", Args: map[string]any{
				"title": "Offsite", "date": "2026-09-05",
			}},
			engine.ActionRequest{ToolName: "send_email", Args: map[string]any{
				"to": "gail@example.com", "subject": "Offsite invite",
			}},
		),
	)
	f.engine.OnResume("intr_9", scripted.AssistantStep("Done."))

	if _, err := f.coord.HandleMessage(context.Background(), "book the offsite and invite gail"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if err := f.coord.Decide(0, engine.DecisionApprove); err != nil {
		t.Fatalf("Decide(0) error = %v", err)
	}
	if err := f.coord.Decide(1, engine.DecisionReject); err != nil {
		t.Fatalf("Decide(1) error = %v", err)
	}
	if _, err := f.coord.SubmitDecisions(context.Background()); err != nil {
		t.Fatalf("SubmitDecisions() error = %v", err)
	}

	// The rejected email action never reaches the provider; the
	// calendar action produces no email record at all.
	if f.sender.calls != 0 {
		t.Errorf("provider calls = %d, want 0", f.sender.calls)
	}
	emails := f.store.Emails()
	if len(emails) != 1 || emails[0].Status != models.EmailRejected || emails[0].To != "gail@example.com" {
		t.Fatalf("emails = %+v", emails)
	}
	meetings := f.store.Meetings()
	if len(meetings) != 1 || meetings[0].Status != models.MeetingApproved {
		t.Fatalf("meeting = %+v, want Approved", meetings)
	}
}

func TestCancelDiscardsWithoutSideEffects(t *testing.T) {
	f := pausedFixture(t)
	oldThread := f.coord.ThreadID()

	if err := f.coord.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if f.sender.calls != 0 {
		t.Errorf("provider calls = %d, want 0", f.sender.calls)
	}
	if got := len(f.store.Emails()); got != 0 {
		t.Errorf("got %d email records, want 0", got)
	}
	if f.engine.ResumeCalls != 0 {
		t.Errorf("ResumeCalls = %d, want 0", f.engine.ResumeCalls)
	}
	if f.coord.State() != StateIdle {
		t.Errorf("State() = %q, want idle", f.coord.State())
	}
	if f.coord.ThreadID() == oldThread {
		t.Error("thread did not rotate after cancel")
	}
	// Pending meeting stays Pending; cancel decides nothing.
	if m := f.store.Meetings(); len(m) != 1 || m[0].Status != models.MeetingPending {
		t.Errorf("meeting = %+v, want Pending", m)
	}
}

func TestDecideValidation(t *testing.T) {
	f := pausedFixture(t)
	if err := f.coord.Decide(5, engine.DecisionApprove); err == nil {
		t.Error("Decide(5) accepted an out-of-range index")
	}
	if err := f.coord.Decide(0, engine.DecisionType("maybe")); err == nil {
		t.Error("Decide accepted an unknown decision type")
	}
	// Overwrite before submit is allowed.
	if err := f.coord.Decide(0, engine.DecisionApprove); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if err := f.coord.Decide(0, engine.DecisionReject); err != nil {
		t.Fatalf("re-Decide() error = %v", err)
	}
	_, _, decisions, ok := f.coord.Pending()
	if !ok || decisions[0] != engine.DecisionReject {
		t.Errorf("Pending() decisions = %v", decisions)
	}
}

func TestEngineErrorSurfacesAsMessage(t *testing.T) {
	f := newFixture(t)
	f.engine.Enqueue(scripted.ErrorStep(errors.New("429 too many requests")))

	res, err := f.coord.HandleMessage(context.Background(), "hello")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if res.ErrorText == "" {
		t.Fatal("expected a categorized error message")
	}
	if f.coord.State() != StateIdle {
		t.Errorf("State() = %q, want idle after error", f.coord.State())
	}
}

func TestScheduleMeetingManual(t *testing.T) {
	f := newFixture(t)
	m, err := f.coord.ScheduleMeeting(context.Background(), models.Meeting{
		Title:     "Board review",
		Date:      "2026-09-10",
		StartTime: "09:00",
		EndTime:   "10:00",
		Attendees: []string{"gina@example.com", "hank@example.com"},
	}, true)
	if err != nil {
		t.Fatalf("ScheduleMeeting() error = %v", err)
	}
	if m.Source != models.SourceScheduler || m.Status != models.MeetingPending {
		t.Errorf("meeting = %+v", m)
	}
	if f.sender.calls != 2 {
		t.Errorf("provider calls = %d, want 2", f.sender.calls)
	}
	for _, e := range f.store.Emails() {
		if e.MeetingID != m.ID || e.Source != models.SourceScheduler {
			t.Errorf("invite record = %+v", e)
		}
	}
}

func TestClearSessionResets(t *testing.T) {
	f := newFixture(t)
	f.engine.Enqueue(scripted.AssistantStep("hi"))
	if _, err := f.coord.HandleMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	oldThread := f.coord.ThreadID()

	if err := f.coord.ClearSession(); err != nil {
		t.Fatalf("ClearSession() error = %v", err)
	}
	if len(f.coord.Messages()) != 0 {
		t.Error("transcript not cleared")
	}
	if f.coord.ThreadID() == oldThread {
		t.Error("thread did not rotate")
	}
}

func TestEmptyInterruptCompletesTurn(t *testing.T) {
	f := newFixture(t)
	f.engine.Enqueue(
		scripted.AssistantStep("Checking your calendar."),
		scripted.InterruptStep("intr_empty"),
		scripted.AssistantStep("Nothing needs your approval."),
	)

	res, err := f.coord.HandleMessage(context.Background(), "anything pending?")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if res.Paused {
		t.Fatal("paused on an interrupt with no action requests")
	}
	if res.Reply != "Checking your calendar.\n\nNothing needs your approval." {
		t.Errorf("Reply = %q", res.Reply)
	}
	if got := f.coord.State(); got != StateIdle {
		t.Errorf("State() = %q, want idle", got)
	}
	if _, err := f.coord.SubmitDecisions(context.Background()); !errors.Is(err, ErrNotPaused) {
		t.Errorf("SubmitDecisions() error = %v, want ErrNotPaused", err)
	}

	f.engine.Enqueue(scripted.AssistantStep("Still here."))
	if _, err := f.coord.HandleMessage(context.Background(), "good"); err != nil {
		t.Errorf("follow-up HandleMessage() error = %v", err)
	}
}

func TestMeetingInferredFromReply(t *testing.T) {
	f := newFixture(t)
	f.engine.Enqueue(
		scripted.AssistantStep("Working on it.", engine.ToolCall{
			ID:   "call_1",
			Name: "create_calendar_event",
		}),
		scripted.ToolStep("create_calendar_event", "call_1", "finished"),
		scripted.AssistantStep(`Your meeting "Team Sync" is scheduled for 2026-09-02 at 3:00 pm.`),
	)

	if _, err := f.coord.HandleMessage(context.Background(), "set up a team sync"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	meetings := f.store.Meetings()
	if len(meetings) != 1 {
		t.Fatalf("got %d meetings, want 1", len(meetings))
	}
	m := meetings[0]
	if m.Title != "Team Sync" || m.Date != "2026-09-02" || m.StartTime != "15:00" {
		t.Errorf("meeting = %q on %s at %s", m.Title, m.Date, m.StartTime)
	}
	if m.Status != models.MeetingPending || m.Source != models.SourceAgent {
		t.Errorf("status = %q, source = %q", m.Status, m.Source)
	}
}

func TestNoMeetingInferredWithoutConfirmation(t *testing.T) {
	f := newFixture(t)
	f.engine.Enqueue(
		scripted.AssistantStep("Trying.", engine.ToolCall{
			ID:   "call_1",
			Name: "create_calendar_event",
		}),
		scripted.ToolStep("create_calendar_event", "call_1", "error: forbidden"),
		scripted.AssistantStep("I could not reach your calendar."),
	)

	if _, err := f.coord.HandleMessage(context.Background(), "set up a team sync"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if got := len(f.store.Meetings()); got != 0 {
		t.Errorf("got %d meetings, want 0", got)
	}
}

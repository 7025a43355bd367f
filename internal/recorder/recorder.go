// Package recorder implements "send and save" as a single idempotent
// operation: validate, deduplicate, determine the delivery outcome, and
// write exactly one audit record per logical send.
package recorder

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aidekit/aide/internal/mailer"
	"github.com/aidekit/aide/internal/models"
	"github.com/aidekit/aide/internal/store"
)

// ApprovalStatus is the human (or implicit) approval state attached to
// a send request.
type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalPending  ApprovalStatus = "pending"
)

// DeliveryMode states who is responsible for the network call. Making
// this an explicit input removes the class of bugs where both the agent
// and the recorder send (double-send) or neither does.
type DeliveryMode string

const (
	// DirectSend means the recorder itself must call the provider.
	DirectSend DeliveryMode = "direct_send"
	// RecordOnly means the upstream agent tool already performed the
	// send; only the audit record is written.
	RecordOnly DeliveryMode = "record_only"
)

// Soft error markers returned in Result.Err. They never abort the
// caller's flow.
const (
	ErrMissingRecipient = "missing_recipient"
	ErrDuplicate        = "duplicate"
)

// defaultSubject is used when a send request carries no subject.
const defaultSubject = "Email from Agent"

// DefaultDedupWindow is the recency window within which identical
// logical sends collapse into one record. A tunable heuristic, not a
// correctness guarantee.
const DefaultDedupWindow = 30 * time.Second

// Request describes one logical send attempt.
type Request struct {
	To        string
	Subject   string
	Body      string
	Source    models.Source
	Approval  ApprovalStatus
	MeetingID string
	Mode      DeliveryMode
}

// Result is always returned; SendAndSave never fails outright.
type Result struct {
	Sent     bool
	Saved    bool
	RecordID string
	Status   models.DeliveryStatus
	Err      string
}

// Recorder wires the store and the email provider together.
type Recorder struct {
	store  *store.Store
	sender mailer.Sender
	logger *slog.Logger
	window time.Duration
	now    func() time.Time

	// notify, when set, signals that persisted state changed so
	// listeners can re-sync.
	notify func()
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithDedupWindow overrides the dedup recency window.
func WithDedupWindow(d time.Duration) Option {
	return func(r *Recorder) { r.window = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithNotify registers a callback invoked after every record append.
func WithNotify(fn func()) Option {
	return func(r *Recorder) { r.notify = fn }
}

// New creates a Recorder.
func New(st *store.Store, sender mailer.Sender, logger *slog.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		store:  st,
		sender: sender,
		logger: logger,
		window: DefaultDedupWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SendAndSave validates, deduplicates, delivers (when the mode says the
// recorder owns delivery) and records one email. Provider failures are
// mapped into the record's status, never raised.
func (r *Recorder) SendAndSave(ctx context.Context, req Request) Result {
	result := Result{}

	to := strings.TrimSpace(req.To)
	if to == "" {
		r.logger.Warn("recorder: missing recipient")
		result.Err = ErrMissingRecipient
		return result
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = defaultSubject
	}
	body := strings.TrimSpace(req.Body)

	// The resulting status is knowable before any network call:
	// an approved direct send that later fails still dedups against
	// "sent", which is what keeps retries from double-sending.
	prospective := r.prospectiveStatus(req)

	if r.isDuplicate(to, subject, prospective) {
		r.logger.Info("recorder: dedup skip", "to", to, "subject", subject, "status", prospective)
		result.Err = ErrDuplicate
		result.Saved = true
		result.Status = prospective
		return result
	}

	status := prospective
	if req.Approval == ApprovalApproved && req.Mode == DirectSend {
		status = r.deliver(ctx, to, subject, body)
	}

	result.Status = status
	result.Sent = status == models.EmailSent

	record := models.NewEmailRecord(to, subject, body, status, req.Source, req.MeetingID)
	record.SentAt = r.now()
	if err := r.store.AppendEmail(record); err != nil {
		r.logger.Error("recorder: save failed", "to", to, "error", err)
		result.Err = "save_failed:" + err.Error()
		return result
	}
	result.Saved = true
	result.RecordID = record.ID
	r.logger.Info("recorder: email recorded",
		"to", to, "status", status, "approval", req.Approval, "source", req.Source)

	if r.notify != nil {
		r.notify()
	}
	return result
}

// SendAndSaveBulk runs SendAndSave for each non-blank recipient with
// the same subject and body.
func (r *Recorder) SendAndSaveBulk(ctx context.Context, recipients []string, req Request) []Result {
	results := make([]Result, 0, len(recipients))
	for _, to := range recipients {
		if strings.TrimSpace(to) == "" {
			continue
		}
		per := req
		per.To = to
		results = append(results, r.SendAndSave(ctx, per))
	}
	return results
}

// prospectiveStatus determines the record status implied by the
// approval state and delivery mode, before any provider call.
func (r *Recorder) prospectiveStatus(req Request) models.DeliveryStatus {
	switch req.Approval {
	case ApprovalRejected:
		return models.EmailRejected
	case ApprovalApproved:
		// RecordOnly: the agent already sent it; recording "sent"
		// without a network call is the whole point of the mode.
		return models.EmailSent
	default:
		return models.EmailPending
	}
}

// deliver performs the provider call and maps its outcome to a status.
func (r *Recorder) deliver(ctx context.Context, to, subject, body string) models.DeliveryStatus {
	if r.sender == nil {
		return models.EmailNoCredentials
	}
	err := r.sender.Send(ctx, to, subject, body)
	switch {
	case err == nil:
		return models.EmailSent
	case errors.Is(err, mailer.ErrNoCredentials):
		r.logger.Warn("recorder: no provider credentials", "to", to)
		return models.EmailNoCredentials
	default:
		r.logger.Error("recorder: delivery failed", "to", to, "error", err)
		return models.EmailFailed
	}
}

// isDuplicate reports whether an identical logical send was recorded
// within the dedup window.
func (r *Recorder) isDuplicate(to, subject string, status models.DeliveryStatus) bool {
	cutoff := r.now().Add(-r.window)
	for _, e := range r.store.Emails() {
		if strings.TrimSpace(e.To) == to &&
			strings.TrimSpace(e.Subject) == subject &&
			strings.EqualFold(string(e.Status), string(status)) &&
			!e.SentAt.Before(cutoff) {
			return true
		}
	}
	return false
}

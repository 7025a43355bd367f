package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the final outcome recorded for a logical email send.
type DeliveryStatus string

const (
	EmailSent          DeliveryStatus = "sent"
	EmailRejected      DeliveryStatus = "rejected"
	EmailFailed        DeliveryStatus = "failed"
	EmailPending       DeliveryStatus = "pending"
	EmailNoCredentials DeliveryStatus = "no_credentials"
)

// previewLen bounds the stored body preview.
const previewLen = 200

// EmailRecord is the audit record for one logical send attempt.
// Rejected and failed attempts still produce a record; only dedup hits
// within the recency window do not.
type EmailRecord struct {
	ID          string         `json:"id"`
	To          string         `json:"to"`
	Subject     string         `json:"subject"`
	Body        string         `json:"body"`
	BodyPreview string         `json:"body_preview"`
	Status      DeliveryStatus `json:"status"`
	Source      Source         `json:"source"`

	// MeetingID links an invitation email to the meeting it was
	// generated for, when known.
	MeetingID string `json:"meeting_id,omitempty"`

	SentAt time.Time `json:"sent_at"`
}

// NewEmailRecord builds an EmailRecord with a fresh ID and timestamp.
func NewEmailRecord(to, subject, body string, status DeliveryStatus, source Source, meetingID string) EmailRecord {
	preview := body
	if len(preview) > previewLen {
		preview = preview[:previewLen]
	}
	return EmailRecord{
		ID:          uuid.New().String(),
		To:          to,
		Subject:     subject,
		Body:        body,
		BodyPreview: preview,
		Status:      status,
		Source:      source,
		MeetingID:   meetingID,
		SentAt:      time.Now(),
	}
}

// Delivered reports whether the record represents an email that
// actually went out.
func (r EmailRecord) Delivered() bool {
	s := DeliveryStatus(strings.ToLower(string(r.Status)))
	return s == EmailSent
}

// EmailStats aggregates email counts by status and source.
type EmailStats struct {
	Total         int `json:"total"`
	Sent          int `json:"sent"`
	Rejected      int `json:"rejected"`
	Failed        int `json:"failed"`
	FromAgent     int `json:"from_agent"`
	FromHITL      int `json:"from_hitl"`
	FromScheduler int `json:"from_scheduler"`
}

// CountEmails computes aggregate stats over an email collection.
func CountEmails(emails []EmailRecord) EmailStats {
	s := EmailStats{Total: len(emails)}
	for _, e := range emails {
		switch DeliveryStatus(strings.ToLower(string(e.Status))) {
		case EmailSent:
			s.Sent++
		case EmailRejected:
			s.Rejected++
		case EmailFailed:
			s.Failed++
		}
		switch e.Source {
		case SourceAgent:
			s.FromAgent++
		case SourceHITL:
			s.FromHITL++
		case SourceScheduler:
			s.FromScheduler++
		}
	}
	return s
}

// Package models defines the persisted entities shared across aide:
// meetings tracked for approval and the email audit records that
// accompany them.
package models

import (
	"time"

	"github.com/google/uuid"
)

// MeetingStatus is the approval state of a tracked meeting.
type MeetingStatus string

const (
	MeetingPending  MeetingStatus = "Pending"
	MeetingApproved MeetingStatus = "Approved"
	MeetingRejected MeetingStatus = "Rejected"
)

// Source identifies which path created a record.
type Source string

const (
	SourceScheduler Source = "scheduler" // manual scheduling form
	SourceAgent     Source = "agent"     // agent/chat tool call
	SourceHITL      Source = "hitl"      // human approval gate
)

// Meeting is one tracked meeting. Records are append-only except for
// status updates and explicit deletion; the ID never changes.
type Meeting struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Date      string   `json:"date"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Location  string   `json:"location"`
	Attendees []string `json:"attendees"`

	// Invitation text generated for (or supplied by) the scheduling
	// tool call, reused when the invitation email is recorded.
	EmailSubject string `json:"email_subject"`
	EmailBody    string `json:"email_body"`

	Status MeetingStatus `json:"status"`
	Source Source        `json:"source"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewMeeting builds a Meeting with a fresh ID and Pending status.
// Creation always starts Pending; approval happens later via a status
// update.
func NewMeeting(title, date, start, end, location string, attendees []string, source Source) Meeting {
	now := time.Now()
	return Meeting{
		ID:        uuid.New().String(),
		Title:     title,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		Location:  location,
		Attendees: dedupeAttendees(attendees),
		Status:    MeetingPending,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// dedupeAttendees removes duplicate entries while preserving order.
func dedupeAttendees(attendees []string) []string {
	if len(attendees) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(attendees))
	out := make([]string, 0, len(attendees))
	for _, a := range attendees {
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// MeetingStats aggregates meeting counts by status.
type MeetingStats struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Pending  int `json:"pending"`
	Rejected int `json:"rejected"`
}

// CountMeetings computes aggregate stats over a meeting collection.
func CountMeetings(meetings []Meeting) MeetingStats {
	s := MeetingStats{Total: len(meetings)}
	for _, m := range meetings {
		switch m.Status {
		case MeetingApproved:
			s.Approved++
		case MeetingRejected:
			s.Rejected++
		default:
			s.Pending++
		}
	}
	return s
}

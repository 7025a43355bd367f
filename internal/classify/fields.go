package classify

import (
	"fmt"
	"strings"
)

// Tools disagree on argument naming, so every semantic field is looked
// up under an ordered list of known alternates; the first non-empty
// match wins.
var (
	toNames      = []string{"to", "recipient", "email", "address", "to_email", "receiver", "dest"}
	subjectNames = []string{"subject", "title", "sub", "email_subject", "subj", "topic"}
	bodyNames    = []string{
		"body", "message", "content", "text", "email_body",
		"msg", "html_body", "plain_body", "body_text", "email_content",
	}

	titleNames    = []string{"title", "summary", "name", "event_title", "meeting_title", "event_name"}
	dateNames     = []string{"date", "start_date", "day", "event_date"}
	startNames    = []string{"start_time", "start_datetime", "start", "begin_time", "from_time"}
	endNames      = []string{"end_time", "end_datetime", "end", "finish_time", "to_time"}
	locationNames = []string{"location", "place", "room", "venue", "where"}
	attendeeNames = []string{"attendees", "guests", "participants"}
)

// EmailFields are the structured fields extracted from an email-like
// tool invocation.
type EmailFields struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// MeetingFields are the structured fields extracted from a
// calendar-like tool invocation, including the synthesized invitation
// text.
type MeetingFields struct {
	Title     string   `json:"title"`
	Date      string   `json:"date"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Location  string   `json:"location"`
	Attendees []string `json:"attendees"`

	EmailSubject string `json:"email_subject"`
	EmailBody    string `json:"email_body"`
}

// ExtractEmail pulls recipient, subject and body out of a loosely-typed
// argument map.
func ExtractEmail(args map[string]any) EmailFields {
	return EmailFields{
		To:      Field(args, toNames...),
		Subject: Field(args, subjectNames...),
		Body:    Field(args, bodyNames...),
	}
}

// ExtractMeeting pulls meeting fields out of a loosely-typed argument
// map. Combined date-time values are split into independent date and
// time parts, and a default invitation subject/body is synthesized from
// the extracted fields.
func ExtractMeeting(args map[string]any) MeetingFields {
	f := MeetingFields{
		Title:    Field(args, titleNames...),
		Date:     Field(args, dateNames...),
		Start:    Field(args, startNames...),
		End:      Field(args, endNames...),
		Location: Field(args, locationNames...),
	}

	// ISO split: "2024-01-15T10:00:00" yields date "2024-01-15" and
	// time "10:00".
	if d, _ := SplitDateTime(f.Date); d != "" {
		f.Date = d
	}
	if d, tm := SplitDateTime(f.Start); tm != "" {
		f.Start = tm
		if f.Date == "" {
			f.Date = d
		}
	}
	if _, tm := SplitDateTime(f.End); tm != "" {
		f.End = tm
	}

	f.Attendees = attendeeList(args)

	f.EmailSubject = "Meeting Invitation"
	if f.Title != "" {
		f.EmailSubject = "Meeting Invitation: " + f.Title
	}
	f.EmailBody = InvitationBody(f.Title, f.Date, f.Start, f.End, f.Location)
	return f
}

// Field returns the first non-empty value found in args under any of
// the given names. Lists are joined with ", "; other values are
// stringified.
func Field(args map[string]any, names ...string) string {
	if args == nil {
		return ""
	}
	for _, n := range names {
		val, ok := args[n]
		if !ok || val == nil {
			continue
		}
		switch v := val.(type) {
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, ", ")
			}
		case []string:
			if len(v) > 0 {
				return strings.Join(v, ", ")
			}
		default:
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// SplitDateTime splits a combined ISO date-time on the "T" separator.
// Returns empty strings when the value is not a combined date-time. The
// time part is truncated to HH:MM.
func SplitDateTime(v string) (date, clock string) {
	if !strings.Contains(v, "T") {
		return "", ""
	}
	parts := strings.SplitN(v, "T", 2)
	date = parts[0]
	if len(parts) > 1 {
		clock = parts[1]
		if len(clock) > 5 {
			clock = clock[:5]
		}
	}
	return date, clock
}

// attendeeList normalizes the attendees argument, which may be a list
// or a comma-separated string.
func attendeeList(args map[string]any) []string {
	for _, n := range attendeeNames {
		val, ok := args[n]
		if !ok || val == nil {
			continue
		}
		switch v := val.(type) {
		case []string:
			if len(v) > 0 {
				return v
			}
		case []any:
			var out []string
			for _, item := range v {
				if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		case string:
			var out []string
			for _, part := range strings.Split(v, ",") {
				if s := strings.TrimSpace(part); s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

// InvitationBody renders the default invitation text used when a tool
// call did not supply one.
func InvitationBody(title, date, start, end, location string) string {
	if location == "" {
		location = "To be confirmed"
	}
	return fmt.Sprintf(
		"Dear Attendee,\n\nYou are invited to:\n\n"+
			"Title: %s\nDate: %s\nTime: %s - %s\nLocation: %s\n\n"+
			"Please confirm your attendance.\n\nBest regards,\nMeeting Organizer",
		title, date, start, end, location,
	)
}

package session

import (
	"regexp"
	"strings"
	"time"

	"github.com/aidekit/aide/internal/classify"
)

// Phrases that mark the reply as a scheduling confirmation.
var replyConfirmations = []string{
	"scheduled", "created", "booked", "calendar event", "event created",
}

var (
	replyTitleREs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:titled|called|named)["' ]+([^"'<\n]{3,60})`),
		regexp.MustCompile(`"([^"]{3,60})"`),
		regexp.MustCompile(`'([^']{3,60})'`),
	}
	replyDateRE = regexp.MustCompile(`(?i)\d{4}-\d{2}-\d{2}|tomorrow|today`)
	replyTimeRE = regexp.MustCompile(`(?i)\d{1,2}:\d{2}\s*(?:am|pm)?|\d{1,2}\s*(?:am|pm)`)
)

// meetingFromReply mines an assistant reply for meeting fields. It is
// the last resort when a calendar tool ran but its invocation carried
// nothing extractable; only a reply that reads like a scheduling
// confirmation yields fields.
func meetingFromReply(reply, input string, now time.Time) (classify.MeetingFields, bool) {
	low := strings.ToLower(reply)
	confirmed := false
	for _, kw := range replyConfirmations {
		if strings.Contains(low, kw) {
			confirmed = true
			break
		}
	}
	if !confirmed {
		return classify.MeetingFields{}, false
	}

	title := ""
	for _, re := range replyTitleREs {
		if m := re.FindStringSubmatch(reply); m != nil {
			title = strings.TrimRight(strings.TrimSpace(m[1]), ".,")
			break
		}
	}
	if title == "" {
		title = firstClause(input, 60)
	}

	date := ""
	if m := replyDateRE.FindString(reply); m != "" {
		switch strings.ToLower(m) {
		case "tomorrow":
			date = now.AddDate(0, 0, 1).Format("2006-01-02")
		case "today":
			date = now.Format("2006-01-02")
		default:
			date = m
		}
	}

	start := ""
	if m := replyTimeRE.FindString(reply); m != "" {
		start = normalizeClock(m)
	}

	return classify.MeetingFields{Title: title, Date: date, Start: start}, true
}

// firstClause truncates s at the first sentence boundary and then at
// max bytes.
func firstClause(s string, max int) string {
	if i := strings.IndexAny(s, ".!?\n"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if len(s) > max {
		s = strings.TrimSpace(s[:max])
	}
	return s
}

// normalizeClock converts a loosely formatted clock ("3:00 pm", "3pm",
// "14:30") to 24-hour HH:MM. Unparseable input yields "".
func normalizeClock(raw string) string {
	raw = strings.ToLower(strings.ReplaceAll(raw, " ", ""))
	for _, layout := range []string{"3:04pm", "3pm", "15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("15:04")
		}
	}
	return ""
}

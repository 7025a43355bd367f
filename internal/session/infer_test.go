package session

import (
	"testing"
	"time"
)

func TestMeetingFromReply(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		reply string
		input string
		ok    bool
		title string
		date  string
		start string
	}{
		{
			name:  "quoted title with date and time",
			reply: `I have scheduled "Planning Sync" for 2026-09-05 at 2:30 pm.`,
			ok:    true,
			title: "Planning Sync",
			date:  "2026-09-05",
			start: "14:30",
		},
		{
			name:  "named title",
			reply: "The calendar event named Standup is booked for tomorrow at 9am.",
			ok:    true,
			title: "Standup is booked for tomorrow at 9am",
			date:  "2026-08-31",
			start: "09:00",
		},
		{
			name:  "title from user input",
			reply: "Done, the event was created for today.",
			input: "Schedule the budget review. Make it short.",
			ok:    true,
			title: "Schedule the budget review",
			date:  "2026-08-30",
		},
		{
			name:  "no confirmation phrasing",
			reply: "I could not find a free slot.",
			ok:    false,
		},
		{
			name:  "twenty four hour clock",
			reply: "Booked at 16:45.",
			ok:    true,
			start: "16:45",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, ok := meetingFromReply(tt.reply, tt.input, now)
			if ok != tt.ok {
				t.Fatalf("ok = %t, want %t", ok, tt.ok)
			}
			if !ok {
				return
			}
			if fields.Title != tt.title {
				t.Errorf("Title = %q, want %q", fields.Title, tt.title)
			}
			if fields.Date != tt.date {
				t.Errorf("Date = %q, want %q", fields.Date, tt.date)
			}
			if fields.Start != tt.start {
				t.Errorf("Start = %q, want %q", fields.Start, tt.start)
			}
		})
	}
}

func TestNormalizeClock(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"3:00 pm", "15:00"},
		{"3pm", "15:00"},
		{"11 AM", "11:00"},
		{"14:30", "14:30"},
		{"9:05", "09:05"},
		{"noonish", ""},
	}
	for _, tt := range tests {
		if got := normalizeClock(tt.in); got != tt.want {
			t.Errorf("normalizeClock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

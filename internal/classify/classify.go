package classify

import (
	"strings"
)

// Kind is the semantic category of a tool invocation.
type Kind string

const (
	Unclassified Kind = "unclassified"
	Email        Kind = "email"
	Meeting      Kind = "meeting"
)

// Classifier applies keyword lists to tool invocations.
type Classifier struct {
	kw Keywords
}

// New returns a Classifier using the given keyword lists.
func New(kw Keywords) *Classifier {
	return &Classifier{kw: kw}
}

// Classify categorizes one tool invocation from its name, result text
// and arguments. A name match alone is not enough: the result text must
// indicate success, or the invocation must carry extractable arguments.
// Email matching takes precedence; calendar matching only applies to
// tools not already matched as email.
func (c *Classifier) Classify(tool, result string, args map[string]any) Kind {
	name := strings.ToLower(tool)
	res := strings.ToLower(result)

	isEmail := containsAny(name, c.kw.EmailTools)
	if isEmail && (containsAny(res, c.kw.EmailResults) || len(args) > 0) {
		return Email
	}
	if !isEmail && containsAny(name, c.kw.CalendarTools) &&
		(containsAny(res, c.kw.CalendarResults) || len(args) > 0) {
		return Meeting
	}
	return Unclassified
}

// IsEmailTool reports whether the tool name alone matches the email
// keywords. The coordinator uses this on pending action requests, where
// no result text exists yet.
func (c *Classifier) IsEmailTool(tool string) bool {
	return containsAny(strings.ToLower(tool), c.kw.EmailTools)
}

// IsCalendarTool reports whether the tool name alone matches the
// calendar keywords. Email matching takes precedence, mirroring
// Classify.
func (c *Classifier) IsCalendarTool(tool string) bool {
	name := strings.ToLower(tool)
	return !containsAny(name, c.kw.EmailTools) && containsAny(name, c.kw.CalendarTools)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

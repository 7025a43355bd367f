// Package classify maps opaque tool invocations onto a small semantic
// vocabulary. Tool names and argument schemas are not contractually
// fixed by the engine, so classification is keyword-based and
// best-effort; consumers must tolerate false negatives.
package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Keywords holds the classification keyword lists. They are tunable
// configuration, not correctness guarantees; an ambiguously named tool
// misclassifying is an accepted residual risk.
type Keywords struct {
	// EmailTools matches against the lowercased tool name.
	EmailTools []string `yaml:"email_tools"`
	// EmailResults matches success indicators in the tool's result
	// text.
	EmailResults []string `yaml:"email_results"`
	// CalendarTools matches against the lowercased tool name, after
	// email matching has been ruled out.
	CalendarTools []string `yaml:"calendar_tools"`
	// CalendarResults matches success indicators in the tool's
	// result text.
	CalendarResults []string `yaml:"calendar_results"`
}

// DefaultKeywords returns the built-in keyword lists.
func DefaultKeywords() Keywords {
	return Keywords{
		EmailTools: []string{"email", "send", "gmail", "mail", "notify"},
		EmailResults: []string{
			"success", "sent", "delivered", "ok", "true",
			"message id", "id:", "accepted", "messageid", "done",
		},
		CalendarTools: []string{
			"calendar", "event", "schedule", "meeting",
			"create_event", "add_event", "book",
		},
		CalendarResults: []string{
			"success", "created", "scheduled", "confirmed",
			"event id", "eventid", "ok", "done", "true",
		},
	}
}

// LoadKeywords reads keyword lists from a YAML file. A missing file
// yields the defaults; empty lists in the file fall back to the
// corresponding default list.
func LoadKeywords(path string) (Keywords, error) {
	defaults := DefaultKeywords()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults, nil
		}
		return defaults, fmt.Errorf("failed to read keywords file: %w", err)
	}

	var kw Keywords
	if err := yaml.Unmarshal(data, &kw); err != nil {
		return defaults, fmt.Errorf("failed to parse keywords file: %w", err)
	}
	if len(kw.EmailTools) == 0 {
		kw.EmailTools = defaults.EmailTools
	}
	if len(kw.EmailResults) == 0 {
		kw.EmailResults = defaults.EmailResults
	}
	if len(kw.CalendarTools) == 0 {
		kw.CalendarTools = defaults.CalendarTools
	}
	if len(kw.CalendarResults) == 0 {
		kw.CalendarResults = defaults.CalendarResults
	}
	return kw, nil
}

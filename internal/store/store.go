package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aidekit/aide/internal/models"
)

// ErrMeetingDecided reports a status change on a meeting that has
// already left Pending.
var ErrMeetingDecided = errors.New("store: meeting status already decided")

// Store reads and writes the meeting and email collections. Every write
// serializes the full collection to a temporary file and atomically
// renames it over the target, so readers always see either the old or
// the new complete file. A corrupt or missing file degrades to an empty
// collection; this is audit-trail data and availability wins over
// strict consistency.
//
// The mutex serializes read-modify-write cycles within this process.
// Writers in other processes are safe against corruption (atomic
// replace) but may lose each other's concurrent appends.
type Store struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// Open returns a Store rooted at the given data directory, creating it
// if needed.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the store's data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Meetings returns all meetings in insertion order.
func (s *Store) Meetings() []models.Meeting {
	s.mu.Lock()
	defer s.mu.Unlock()
	return load[models.Meeting](s, meetingsFile)
}

// AppendMeeting adds a meeting to the collection.
func (s *Store) AppendMeeting(m models.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meetings := append(load[models.Meeting](s, meetingsFile), m)
	return s.save(meetingsFile, meetings)
}

// SetMeetingStatus moves a Pending meeting to Approved or Rejected.
// Approved and Rejected are terminal; changing a decided meeting fails
// with ErrMeetingDecided. Returns false if no meeting matched.
func (s *Store) SetMeetingStatus(id string, status models.MeetingStatus) (bool, error) {
	if status != models.MeetingApproved && status != models.MeetingRejected {
		return false, fmt.Errorf("store: invalid target status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	meetings := load[models.Meeting](s, meetingsFile)
	for i := range meetings {
		if meetings[i].ID != id {
			continue
		}
		if meetings[i].Status != models.MeetingPending {
			return true, ErrMeetingDecided
		}
		meetings[i].Status = status
		meetings[i].UpdatedAt = time.Now()
		return true, s.save(meetingsFile, meetings)
	}
	return false, nil
}

// DeleteMeeting removes the meeting with the given ID. Returns false if
// no meeting matched.
func (s *Store) DeleteMeeting(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meetings := load[models.Meeting](s, meetingsFile)
	kept := meetings[:0]
	for _, m := range meetings {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(meetings) {
		return false, nil
	}
	return true, s.save(meetingsFile, kept)
}

// Emails returns all email records in insertion order.
func (s *Store) Emails() []models.EmailRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return load[models.EmailRecord](s, emailsFile)
}

// AppendEmail adds an email record to the collection.
func (s *Store) AppendEmail(r models.EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	emails := append(load[models.EmailRecord](s, emailsFile), r)
	return s.save(emailsFile, emails)
}

// DeleteEmail removes the email record with the given ID. Returns false
// if no record matched.
func (s *Store) DeleteEmail(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	emails := load[models.EmailRecord](s, emailsFile)
	kept := emails[:0]
	for _, e := range emails {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(emails) {
		return false, nil
	}
	return true, s.save(emailsFile, kept)
}

// Replace overwrites both collections at once, for restores.
func (s *Store) Replace(meetings []models.Meeting, emails []models.EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(meetingsFile, meetings); err != nil {
		return err
	}
	return s.save(emailsFile, emails)
}

// MeetingStats aggregates meeting counts by status.
func (s *Store) MeetingStats() models.MeetingStats {
	return models.CountMeetings(s.Meetings())
}

// EmailStats aggregates email counts by status and source.
func (s *Store) EmailStats() models.EmailStats {
	return models.CountEmails(s.Emails())
}

// load reads a JSON array file. Missing and corrupt files both yield an
// empty collection; corruption is logged, never returned. A decode
// failure discards anything partially decoded, so callers never see a
// truncated collection.
func load[T any](s *Store, name string) []T {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("store: unreadable collection, treating as empty", "file", name, "error", err)
		}
		return nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn("store: corrupt collection, treating as empty", "file", name, "error", err)
		return nil
	}
	return out
}

// save writes a collection atomically: temp file in the same directory,
// then rename over the target.
func (s *Store) save(name string, collection any) error {
	data, err := json.MarshalIndent(collection, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

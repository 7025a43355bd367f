// Package store persists meeting and email collections as JSON array
// files with atomic replace semantics.
package store

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	meetingsFile = "meetings.json"
	emailsFile   = "emails.json"

	// AuditDBFile is the sqlite activity log kept beside the JSON
	// files. The JSON files are the source of truth; the audit log is
	// runtime data.
	AuditDBFile = "audit.db"
)

// DataDir returns the aide data directory for the given root.
func DataDir(root string) string {
	return filepath.Join(root, ".aide")
}

// EnsureDataDir creates the data directory if it does not exist.
func EnsureDataDir(root string) (string, error) {
	dir := DataDir(root)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// aideGitignore is the default .gitignore content for .aide directories.
const aideGitignore = `# Activity log (runtime data, not version controlled)
audit.db
audit.db-shm
audit.db-wal
`

// EnsureGitignore creates a .gitignore in the data directory if one does
// not already exist, so the sqlite activity log is not committed.
func EnsureGitignore(dir string) error {
	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err == nil {
		return nil // already exists, respect user customizations
	}
	if err := os.WriteFile(path, []byte(aideGitignore), 0o600); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	return nil
}

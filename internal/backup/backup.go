// Package backup exports and restores the record store as a single
// JSON bundle.
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aidekit/aide/internal/models"
	"github.com/aidekit/aide/internal/store"
)

// FormatVersion identifies the bundle layout.
const FormatVersion = 1

// Bundle is the backup file contents.
type Bundle struct {
	Version   int                  `json:"version"`
	CreatedAt time.Time            `json:"created_at"`
	Meetings  []models.Meeting     `json:"meetings"`
	Emails    []models.EmailRecord `json:"emails"`
}

// GenerateBackupPath returns a timestamped file name under dir.
func GenerateBackupPath(dir string) string {
	name := fmt.Sprintf("aide-backup-%s.json", time.Now().Format("20060102-150405"))
	return filepath.Join(dir, name)
}

// DefaultBackupDir returns (and creates) the backups directory under
// the store's data directory.
func DefaultBackupDir(st *store.Store) (string, error) {
	dir := filepath.Join(st.Dir(), "backups")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	return dir, nil
}

// Create writes the store's current contents to path.
func Create(st *store.Store, path string) (Bundle, error) {
	bundle := Bundle{
		Version:   FormatVersion,
		CreatedAt: time.Now(),
		Meetings:  st.Meetings(),
		Emails:    st.Emails(),
	}
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return Bundle{}, fmt.Errorf("failed to encode backup: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Bundle{}, fmt.Errorf("failed to write backup: %w", err)
	}
	return bundle, nil
}

// Restore replaces the store's contents with the bundle at path.
func Restore(st *store.Store, path string) (Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Bundle{}, fmt.Errorf("failed to read backup: %w", err)
	}
	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return Bundle{}, fmt.Errorf("failed to parse backup: %w", err)
	}
	if bundle.Version != FormatVersion {
		return Bundle{}, fmt.Errorf("unsupported backup version %d", bundle.Version)
	}
	if err := st.Replace(bundle.Meetings, bundle.Emails); err != nil {
		return Bundle{}, fmt.Errorf("failed to restore records: %w", err)
	}
	return bundle, nil
}

// RotateBackups keeps the newest keep backup files in dir and removes
// the rest.
func RotateBackups(dir string, keep int) error {
	matches, err := filepath.Glob(filepath.Join(dir, "aide-backup-*.json"))
	if err != nil {
		return err
	}
	if len(matches) <= keep {
		return nil
	}
	// Timestamped names sort chronologically.
	sort.Strings(matches)
	for _, path := range matches[:len(matches)-keep] {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", path, err)
		}
	}
	return nil
}

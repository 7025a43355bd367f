// Package audit keeps a capped activity log in a local sqlite database.
// Entries are operator-facing breadcrumbs (turn lifecycle, approvals,
// send outcomes), not structured telemetry.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// maxEntries bounds the log; older rows are pruned on insert.
const maxEntries = 500

const schema = `
CREATE TABLE IF NOT EXISTS activity_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	level      TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_log_created_at ON activity_log(created_at);
`

// Entry is one activity log row.
type Entry struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Log is the sqlite-backed activity log.
type Log struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the activity log database at path.
func Open(path string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	return &Log{db: db, logger: logger}, nil
}

// Record appends an entry. It is best effort: a write failure is
// logged and swallowed so audit trouble never fails a turn.
func (l *Log) Record(level, message string) {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := l.db.Exec(
		`INSERT INTO activity_log (level, message, created_at) VALUES (?, ?, ?)`,
		level, message, now,
	)
	if err != nil {
		l.logger.Warn("audit write failed", "error", err)
		return
	}
	l.prune()
}

// Recent returns up to n entries, newest first.
func (l *Log) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, level, message, created_at FROM activity_log ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.Level, &e.Message, &created); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339, created); perr == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear removes all entries.
func (l *Log) Clear(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM activity_log`); err != nil {
		return fmt.Errorf("failed to clear audit log: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

// prune drops rows beyond the cap, oldest first.
func (l *Log) prune() {
	_, err := l.db.Exec(`
		DELETE FROM activity_log
		WHERE id NOT IN (
			SELECT id FROM activity_log ORDER BY id DESC LIMIT ?
		)`, maxEntries)
	if err != nil {
		l.logger.Warn("audit prune failed", "error", err)
	}
}

package outcome

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Registers the "sqlite" database/sql driver.

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
)

const (
	dirPermissions = 0o700

	createTableSQL = `
CREATE TABLE IF NOT EXISTS outcomes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	hostname    TEXT NOT NULL,
	alarm_id    TEXT NOT NULL,
	method      TEXT NOT NULL,
	snooze      INTEGER NOT NULL,
	resolved_at TEXT NOT NULL
)`
)

// SQLiteJournal stores entries in a SQLite table.
type SQLiteJournal struct {
	db       *sql.DB
	hostname string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err = db.ExecContext(ctx, createTableSQL); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create outcomes table: %w", err)
	}

	if err = os.Chmod(path, filePermissions); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = db.Close()

		return nil, fmt.Errorf("chmod journal: %w", err)
	}

	return &SQLiteJournal{db: db, hostname: localHostname()}, nil
}

// Append inserts one row.
func (j *SQLiteJournal) Append(ctx context.Context, entry Entry) error {
	if entry.Hostname == "" {
		entry.Hostname = j.hostname
	}

	resolvedAt := ""
	if !entry.Outcome.ResolvedAt.IsZero() {
		resolvedAt = entry.Outcome.ResolvedAt.UTC().Format(time.RFC3339Nano)
	}

	snooze := 0
	if entry.Outcome.Snooze {
		snooze = 1
	}

	_, err := j.db.ExecContext(ctx, `
INSERT INTO outcomes(session_id, hostname, alarm_id, method, snooze, resolved_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		entry.SessionID, entry.Hostname, entry.Outcome.AlarmID, string(entry.Outcome.Method), snooze, resolvedAt)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}

	return nil
}

// Load returns every row in insertion order.
func (j *SQLiteJournal) Load(ctx context.Context) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT session_id, hostname, alarm_id, method, snooze, resolved_at
FROM outcomes
ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var entries []Entry

	for rows.Next() {
		var (
			entry      Entry
			method     string
			snooze     int
			resolvedAt string
		)

		err = rows.Scan(&entry.SessionID, &entry.Hostname, &entry.Outcome.AlarmID, &method, &snooze, &resolvedAt)
		if err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}

		entry.Outcome.Method = alarm.Method(method)
		entry.Outcome.Snooze = snooze != 0

		if resolvedAt != "" {
			entry.Outcome.ResolvedAt, _ = time.Parse(time.RFC3339Nano, resolvedAt)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Close releases the database.
func (j *SQLiteJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}

	return j.db.Close()
}

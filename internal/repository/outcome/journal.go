package outcome

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
)

// Journal records resolved alarms.
type Journal interface {
	Append(ctx context.Context, entry Entry) error
}

// Store is a journal that can be read back and closed.
type Store interface {
	Journal
	Load(ctx context.Context) ([]Entry, error)
	Close() error
}

// Open picks the backend from the file extension: .db, .sqlite and .sqlite3
// open a SQLite database, anything else a JSON lines file.
func Open(ctx context.Context, path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		journal, err := OpenSQLite(ctx, path)
		if err != nil {
			return nil, err
		}

		return journal, nil
	default:
		return NewFileJournal(path), nil
	}
}

// Entry is one journal line.
type Entry struct {
	SessionID string
	Hostname  string
	Outcome   alarm.Outcome
}

// ErrNotFound is returned when the journal file does not exist yet.
var ErrNotFound = errors.New("journal not found")

const filePermissions = 0o600

// FileJournal appends entries to a JSON lines file.
type FileJournal struct {
	// path is the filesystem location of the journal.
	path string
	// hostname is stamped on entries that do not carry one.
	hostname string
	// mu serializes writers within the process.
	mu sync.Mutex
}

// NewFileJournal creates a journal that appends to path.
func NewFileJournal(path string) *FileJournal {
	return &FileJournal{
		path:     filepath.Clean(path),
		hostname: localHostname(),
	}
}

// Close is a no-op; the file is opened per append.
func (j *FileJournal) Close() error {
	return nil
}

// Append writes entry as one line.
func (j *FileJournal) Append(_ context.Context, entry Entry) error {
	if entry.Hostname == "" {
		entry.Hostname = j.hostname
	}

	msg, err := toStruct(entry)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}

	data, err := protojson.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePermissions)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	_, err = f.Write(append(data, '\n'))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("write journal: %w", err)
	}

	return nil
}

// Load reads every entry in append order.
func (j *FileJournal) Load(_ context.Context) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	contents, err := os.ReadFile(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read journal: %w", err)
	}

	var entries []Entry

	scanner := bufio.NewScanner(bytes.NewReader(contents))
	for line := 1; scanner.Scan(); line++ {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}

		var msg structpb.Struct
		if err = protojson.Unmarshal(scanner.Bytes(), &msg); err != nil {
			return nil, fmt.Errorf("decode journal line %d: %w", line, err)
		}

		entries = append(entries, fromStruct(&msg))
	}

	return entries, scanner.Err()
}

func localHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return ""
	}

	return hostname
}

func toStruct(entry Entry) (*structpb.Struct, error) {
	resolvedAt := ""
	if !entry.Outcome.ResolvedAt.IsZero() {
		resolvedAt = entry.Outcome.ResolvedAt.UTC().Format(time.RFC3339Nano)
	}

	return structpb.NewStruct(map[string]any{
		"session_id":  entry.SessionID,
		"hostname":    entry.Hostname,
		"alarm_id":    entry.Outcome.AlarmID,
		"method":      string(entry.Outcome.Method),
		"snooze":      entry.Outcome.Snooze,
		"resolved_at": resolvedAt,
	})
}

func fromStruct(msg *structpb.Struct) Entry {
	fields := msg.GetFields()

	var resolvedAt time.Time
	if raw := fields["resolved_at"].GetStringValue(); raw != "" {
		resolvedAt, _ = time.Parse(time.RFC3339Nano, raw)
	}

	return Entry{
		SessionID: fields["session_id"].GetStringValue(),
		Hostname:  fields["hostname"].GetStringValue(),
		Outcome: alarm.Outcome{
			AlarmID:    fields["alarm_id"].GetStringValue(),
			Method:     alarm.Method(fields["method"].GetStringValue()),
			Snooze:     fields["snooze"].GetBoolValue(),
			ResolvedAt: resolvedAt,
		},
	}
}

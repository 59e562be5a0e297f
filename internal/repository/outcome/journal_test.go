package outcome

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
)

// TestFileJournal_NotFound verifies Load returns ErrNotFound for a missing file.
func TestFileJournal_NotFound(t *testing.T) {
	t.Parallel()

	journal := NewFileJournal(filepath.Join(t.TempDir(), "missing.jsonl"))

	entries, err := journal.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, entries)
}

// TestFileJournal_AppendLoad ensures entries come back in order.
func TestFileJournal_AppendLoad(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "outcomes.jsonl")
	journal := NewFileJournal(file)

	resolvedAt := time.Date(2026, 10, 17, 7, 3, 0, 0, time.UTC)

	first := Entry{
		SessionID: "s1",
		Hostname:  "bedroom",
		Outcome:   alarm.Outcome{AlarmID: "weekday", Method: alarm.MethodVoice, Snooze: true, ResolvedAt: resolvedAt},
	}
	second := Entry{
		SessionID: "s2",
		Outcome:   alarm.Outcome{AlarmID: "weekday", Method: alarm.MethodButton},
	}

	require.NoError(t, journal.Append(context.Background(), first))
	require.NoError(t, journal.Append(context.Background(), second))

	entries, err := journal.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, first, entries[0])
	require.Equal(t, "s2", entries[1].SessionID)
	require.Equal(t, journal.hostname, entries[1].Hostname)
	require.True(t, entries[1].Outcome.ResolvedAt.IsZero())

	info, err := os.Stat(file)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(filePermissions), info.Mode().Perm())
}

// TestFileJournal_ConcurrentAppends checks that lines never interleave.
func TestFileJournal_ConcurrentAppends(t *testing.T) {
	t.Parallel()

	journal := NewFileJournal(filepath.Join(t.TempDir(), "outcomes.jsonl"))

	var wg sync.WaitGroup

	for range 20 {
		wg.Go(func() {
			_ = journal.Append(context.Background(), Entry{Outcome: alarm.Outcome{Method: alarm.MethodShake}})
		})
	}

	wg.Wait()

	entries, err := journal.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 20)
}

// TestFileJournal_CorruptLine reports the broken line.
func TestFileJournal_CorruptLine(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "outcomes.jsonl")
	require.NoError(t, os.WriteFile(file, []byte("{\"method\":\"voice\"}\nnot json\n"), filePermissions))

	_, err := NewFileJournal(file).Load(context.Background())
	require.ErrorContains(t, err, "line 2")
}

// TestOpen_PicksBackendByExtension checks both backends behind Store.
func TestOpen_PicksBackendByExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tests := []struct {
		name string
		file string
	}{
		{name: "json lines", file: "outcomes.jsonl"},
		{name: "sqlite", file: filepath.Join("nested", "outcomes.db")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()

			store, err := Open(ctx, filepath.Join(dir, tt.file))
			require.NoError(t, err)

			t.Cleanup(func() {
				require.NoError(t, store.Close())
			})

			resolvedAt := time.Date(2026, 10, 17, 6, 30, 0, 0, time.UTC)

			require.NoError(t, store.Append(ctx, Entry{
				SessionID: "s1",
				Hostname:  "kitchen",
				Outcome:   alarm.Outcome{AlarmID: "a", Method: alarm.MethodCancel, ResolvedAt: resolvedAt},
			}))
			require.NoError(t, store.Append(ctx, Entry{
				SessionID: "s2",
				Outcome:   alarm.Outcome{AlarmID: "a", Method: alarm.MethodVoice, Snooze: true},
			}))

			entries, err := store.Load(ctx)
			require.NoError(t, err)
			require.Len(t, entries, 2)
			require.Equal(t, "kitchen", entries[0].Hostname)
			require.Equal(t, alarm.MethodCancel, entries[0].Outcome.Method)
			require.True(t, resolvedAt.Equal(entries[0].Outcome.ResolvedAt))
			require.Equal(t, "s2", entries[1].SessionID)
			require.True(t, entries[1].Outcome.Snooze)
			require.Equal(t, localHostname(), entries[1].Hostname)
		})
	}
}

// TestSQLiteJournal_Reopen checks that rows survive closing the database.
func TestSQLiteJournal_Reopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "outcomes.sqlite")

	journal, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, journal.Append(ctx, Entry{SessionID: "s1", Outcome: alarm.Outcome{Method: alarm.MethodShake}}))
	require.NoError(t, journal.Close())

	journal, err = OpenSQLite(ctx, path)
	require.NoError(t, err)

	defer func() {
		_ = journal.Close()
	}()

	entries, err := journal.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, alarm.MethodShake, entries[0].Outcome.Method)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(filePermissions), info.Mode().Perm())
}

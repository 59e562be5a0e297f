package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/repository/outcome"
	"github.com/oshokin/alarm-clock/internal/service/session"
)

const (
	// DefaultRetention is how long a terminated session stays queryable.
	DefaultRetention = time.Hour
	// DefaultCleanupInterval is how often expired sessions are dropped.
	DefaultCleanupInterval = 5 * time.Minute
	// DefaultSubscriberBuffer is the live event backlog per subscriber.
	DefaultSubscriberBuffer = 64
)

var (
	// ErrSessionNotFound is returned for unknown or expired session IDs.
	ErrSessionNotFound = errors.New("session not found")
	// ErrManagerClosed is returned by Start after Close.
	ErrManagerClosed = errors.New("session manager is closed")
)

// Request describes an alarm that just fired.
type Request struct {
	// SessionID is assigned by Start before the leaves are built.
	SessionID string
	Params    session.Params
	Config    session.Config
}

// LeavesFactory builds the leaves of one session.
type LeavesFactory func(ctx context.Context, req Request) (session.Leaves, error)

// Options tune the manager; zero values use the defaults.
type Options struct {
	Retention        time.Duration
	CleanupInterval  time.Duration
	SubscriberBuffer int
	// Journal records every resolved session when set.
	Journal outcome.Journal
}

type entry struct {
	controller *session.Controller
	recorder   *recorder
}

// Manager owns every session started through it.
type Manager struct {
	factory LeavesFactory
	opts    Options
	now     func() time.Time

	ctx    context.Context //nolint:containedctx // Lifetime of every managed session.
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	sessions map[string]*entry

	// journaling tracks outcome writes still in flight.
	journaling sync.WaitGroup
}

// NewManager starts a manager whose sessions live until ctx is done or Close is called.
func NewManager(ctx context.Context, factory LeavesFactory, opts Options) *Manager {
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}

	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}

	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = DefaultSubscriberBuffer
	}

	ctx, cancel := context.WithCancel(logger.WithName(ctx, "host"))

	m := &Manager{
		factory:  factory,
		opts:     opts,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*entry),
	}

	go m.cleanupLoop()

	return m
}

// Start creates a session for req, starts it ringing and returns its ID.
// An empty alarm ID is replaced by the session ID.
func (m *Manager) Start(req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrManagerClosed
	}

	id := uuid.NewString()
	req.SessionID = id

	if req.Params.AlarmID == "" {
		req.Params.AlarmID = id
	}

	ctx := logger.WithKV(m.ctx, "session_id", id)

	var leaves session.Leaves

	if m.factory != nil {
		var err error

		leaves, err = m.factory(ctx, req)
		if err != nil {
			return "", fmt.Errorf("build session leaves: %w", err)
		}
	}

	rec := newRecorder(id, m.opts.SubscriberBuffer, m.now)
	controller := session.New(req.Params, req.Config, leaves, rec)

	if err := controller.Start(ctx); err != nil {
		return "", err
	}

	m.sessions[id] = &entry{controller: controller, recorder: rec}

	if m.opts.Journal != nil {
		m.journaling.Go(func() { m.record(ctx, id, controller) })
	}

	logger.InfoKV(ctx, "Session started", "alarm_id", req.Params.AlarmID)

	return id, nil
}

// Signal routes sig to the session. The bool reports whether it resolved the session.
func (m *Manager) Signal(id string, sig alarm.Signal) (bool, error) {
	e, err := m.get(id)
	if err != nil {
		return false, err
	}

	return e.controller.Signal(sig), nil
}

// ToggleAudioSource switches the session between voice and tone.
func (m *Manager) ToggleAudioSource(id string) (alarm.AudioSource, error) {
	e, err := m.get(id)
	if err != nil {
		return alarm.AudioSourceNone, err
	}

	return e.controller.ToggleAudioSource()
}

// Session returns a snapshot of the session.
func (m *Manager) Session(id string) (*alarm.Session, error) {
	e, err := m.get(id)
	if err != nil {
		return nil, err
	}

	return e.controller.Session(), nil
}

// Subscribe replays the session's events so far, then streams new ones.
// The channel is closed after the terminal event; cancel detaches early.
func (m *Manager) Subscribe(id string) (<-chan Event, func(), error) {
	e, err := m.get(id)
	if err != nil {
		return nil, nil, err
	}

	events, cancel := e.recorder.subscribe()

	return events, cancel, nil
}

// Done is closed once the session's terminal event has been delivered.
func (m *Manager) Done(id string) (<-chan struct{}, error) {
	e, err := m.get(id)
	if err != nil {
		return nil, err
	}

	return e.controller.Done(), nil
}

// Close cancels every session and waits for their terminal events or ctx.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true

	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	m.cancel()

	var err error

	for _, e := range entries {
		select {
		case <-e.controller.Done():
		case <-ctx.Done():
			err = multierr.Append(err, fmt.Errorf("session %s: %w", e.recorder.sessionID, ctx.Err()))
		}
	}

	flushed := make(chan struct{})

	go func() {
		m.journaling.Wait()
		close(flushed)
	}()

	select {
	case <-flushed:
	case <-ctx.Done():
		err = multierr.Append(err, fmt.Errorf("journal: %w", ctx.Err()))
	}

	return err
}

func (m *Manager) get(id string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	return e, nil
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if removed := m.cleanup(m.now()); removed > 0 {
				logger.DebugKV(m.ctx, "Dropped expired sessions", "count", removed)
			}
		}
	}
}

// cleanup drops sessions that terminated more than the retention window before now.
func (m *Manager) cleanup(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-m.opts.Retention)
	removed := 0

	for id, e := range m.sessions {
		if e.recorder.finishedBefore(cutoff) {
			delete(m.sessions, id)

			removed++
		}
	}

	return removed
}

func (m *Manager) record(ctx context.Context, id string, controller *session.Controller) {
	<-controller.Done()

	result, ok := controller.Outcome()
	if !ok {
		return
	}

	err := m.opts.Journal.Append(context.WithoutCancel(ctx), outcome.Entry{
		SessionID: id,
		Outcome:   result,
	})
	if err != nil {
		logger.ErrorKV(ctx, "Failed to journal outcome", "error", err)
	}
}

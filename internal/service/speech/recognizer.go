package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/ports"
)

const (
	// DefaultBackoff is the pause between a cycle ending and the next one starting.
	DefaultBackoff = time.Second
	// DefaultMaxFailures is how many cycles may fail in a row before giving up.
	DefaultMaxFailures = 5
)

// Config tunes the restart loop.
type Config struct {
	// Locale is passed to the provider, e.g. "en-US".
	Locale string
	// Backoff is the delay before each restart.
	Backoff time.Duration
	// MaxFailures is the number of consecutive failed cycles that ends recognition.
	MaxFailures int
}

// Listener receives recognizer events. Every method is called from the
// recognizer goroutine, never from inside Start or Stop.
type Listener interface {
	OnStarted()
	OnTranscript(t ports.Transcript)
	OnError(err error)
	OnEnded()
	// OnUnavailable is called at most once, when recognition is gone for good.
	OnUnavailable(err error)
}

// Recognizer drives a SpeechRecognitionProvider in continuous mode.
type Recognizer struct {
	provider ports.SpeechRecognitionProvider
	cfg      Config
}

// NewRecognizer returns a recognizer with defaults applied to cfg.
func NewRecognizer(provider ports.SpeechRecognitionProvider, cfg Config) *Recognizer {
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}

	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}

	return &Recognizer{
		provider: provider,
		cfg:      cfg,
	}
}

// WithLocale returns a copy of the recognizer that listens in locale.
// An empty locale keeps the configured one.
func (r *Recognizer) WithLocale(locale string) *Recognizer {
	if locale == "" {
		return r
	}

	cloned := *r
	cloned.cfg.Locale = locale

	return &cloned
}

// Handle controls one continuous listening run.
type Handle struct {
	cancel   context.CancelFunc
	active   atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
}

// Stop ends listening. It is idempotent and does not wait for the provider.
func (h *Handle) Stop() {
	if h == nil {
		return
	}

	h.stopOnce.Do(func() {
		h.active.Store(false)
		h.cancel()
	})
}

// Active reports whether events from this run are still meaningful.
func (h *Handle) Active() bool {
	return h != nil && h.active.Load()
}

// Done is closed once the run goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start begins continuous listening and returns immediately.
// alive is read before every event delivery and every restart; once it
// reports false the run winds down silently.
func (r *Recognizer) Start(ctx context.Context, alive func() bool, l Listener) *Handle {
	runCtx, cancel := context.WithCancel(ctx)

	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	h.active.Store(true)

	if r.provider == nil || !r.provider.IsSupported() {
		go func() {
			defer close(h.done)

			if h.live(runCtx, alive) {
				h.active.Store(false)
				l.OnUnavailable(fmt.Errorf("speech recognition: %w", alarm.ErrFeatureUnsupported))
			}

			cancel()
		}()

		return h
	}

	go r.run(runCtx, h, alive, l)

	return h
}

// run is the restart loop.
func (r *Recognizer) run(ctx context.Context, h *Handle, alive func() bool, l Listener) {
	defer close(h.done)
	defer h.cancel()

	failures := 0

	for h.live(ctx, alive) {
		err := r.cycle(ctx, h, alive, l)

		if !h.live(ctx, alive) {
			return
		}

		if errors.Is(err, alarm.ErrFeatureUnsupported) {
			h.active.Store(false)
			l.OnUnavailable(err)

			return
		}

		if err != nil {
			failures++

			logger.DebugKV(ctx, "Recognition cycle failed", "error", err, "consecutive_failures", failures)
			l.OnError(err)
		} else {
			failures = 0
		}

		l.OnEnded()

		if failures >= r.cfg.MaxFailures {
			h.active.Store(false)
			l.OnUnavailable(fmt.Errorf("%w after %d consecutive failures: %w", alarm.ErrRestartExhausted, failures, err))

			return
		}

		timer := time.NewTimer(r.cfg.Backoff)

		select {
		case <-ctx.Done():
			timer.Stop()

			return
		case <-timer.C:
		}
	}
}

// cycle runs one listening cycle and returns why it ended.
func (r *Recognizer) cycle(ctx context.Context, h *Handle, alive func() bool, l Listener) error {
	stream, err := r.provider.Listen(ctx, r.cfg.Locale)
	if err != nil {
		if errors.Is(err, alarm.ErrFeatureUnsupported) {
			return err
		}

		return fmt.Errorf("%w: %w", alarm.ErrTransientRecognition, err)
	}

	defer func() {
		_ = stream.Close()
	}()

	if !h.live(ctx, alive) {
		return nil
	}

	l.OnStarted()

	results := stream.Results()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-results:
			if !ok {
				if streamErr := stream.Err(); streamErr != nil {
					return fmt.Errorf("%w: %w", alarm.ErrTransientRecognition, streamErr)
				}

				return nil
			}

			if !h.live(ctx, alive) {
				return nil
			}

			l.OnTranscript(t)
		}
	}
}

// live is the liveness check evaluated at event time.
func (h *Handle) live(ctx context.Context, alive func() bool) bool {
	if !h.active.Load() || ctx.Err() != nil {
		return false
	}

	return alive == nil || alive()
}

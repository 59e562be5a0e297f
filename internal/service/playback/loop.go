package playback

import (
	"context"
	"sync"
	"time"
)

// Handle stops a running playback loop.
type Handle struct {
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// Stop halts playback. It is safe to call many times, and after the loop already ended.
func (h *Handle) Stop() {
	if h == nil {
		return
	}

	h.stopOnce.Do(h.cancel)
}

// Done is closed once the loop goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// loopConfig describes one playback loop.
type loopConfig struct {
	// interval is the period between play starts.
	interval time.Duration
	// once plays a single time and then idles until stopped.
	once bool
	// play performs one playback and blocks until it ends.
	play func(ctx context.Context) error
	// onFailed receives the first error that was not caused by Stop.
	onFailed func(err error)
}

// startLoop launches the loop goroutine and returns its handle.
func startLoop(ctx context.Context, cfg loopConfig) *Handle {
	loopCtx, cancel := context.WithCancel(ctx)

	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)

		runLoop(loopCtx, cfg)
	}()

	return h
}

// runLoop plays until ctx is done or play fails.
func runLoop(ctx context.Context, cfg loopConfig) {
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	for ctx.Err() == nil {
		if err := cfg.play(ctx); err != nil {
			if ctx.Err() == nil && cfg.onFailed != nil {
				cfg.onFailed(err)
			}

			return
		}

		if cfg.once {
			<-ctx.Done()

			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// failAsync reports err without running a loop; the handle is already finished.
func failAsync(ctx context.Context, err error, onFailed func(error)) *Handle {
	loopCtx, cancel := context.WithCancel(ctx)

	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer cancel()

		if loopCtx.Err() == nil && onFailed != nil {
			onFailed(err)
		}
	}()

	return h
}

// Package gate implements the first-writer-wins latch that decides how a
// ringing session ends.
package gate

import (
	"sync/atomic"
	"time"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
)

// Gate accepts exactly one resolution for the lifetime of a session.
// The zero value is ready to use.
type Gate struct {
	// winner is nil until the first successful TryResolve.
	winner atomic.Pointer[alarm.Resolution]
	// now is the clock used for ResolvedAt; nil means time.Now.
	now func() time.Time
}

// New returns an open gate.
func New() *Gate {
	return new(Gate)
}

// TryResolve records the resolution if the gate is still open.
// It is a single compare-and-swap, so concurrent callers from the recognizer,
// the UI and the motion sensor can never both win.
func (g *Gate) TryResolve(method alarm.Method, action alarm.Action) bool {
	now := time.Now
	if g.now != nil {
		now = g.now
	}

	candidate := &alarm.Resolution{
		Method:     method,
		Action:     action,
		ResolvedAt: now(),
	}

	return g.winner.CompareAndSwap(nil, candidate)
}

// Resolution returns a copy of the recorded resolution.
func (g *Gate) Resolution() (*alarm.Resolution, bool) {
	r := g.winner.Load()
	if r == nil {
		return nil, false
	}

	return r.Clone(), true
}

// Closed reports whether a resolution has been recorded.
func (g *Gate) Closed() bool {
	return g.winner.Load() != nil
}

// Package haptic emits periodic vibration pulses while an alarm rings.
package haptic

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/ports"
)

const (
	// DefaultPeriod is the interval between pulse starts.
	DefaultPeriod = 2 * time.Second
	// DefaultPulse is the length of one pulse.
	DefaultPulse = 400 * time.Millisecond
)

// Pulser drives a HapticDevice on a fixed period.
type Pulser struct {
	device ports.HapticDevice
	period time.Duration
	pulse  time.Duration
}

// NewPulser returns a pulser with defaults for non-positive durations.
func NewPulser(device ports.HapticDevice, period, pulse time.Duration) *Pulser {
	if period <= 0 {
		period = DefaultPeriod
	}

	if pulse <= 0 {
		pulse = DefaultPulse
	}

	return &Pulser{
		device: device,
		period: period,
		pulse:  pulse,
	}
}

// Supported reports whether the device can pulse at all.
func (p *Pulser) Supported() bool {
	return p.device != nil && p.device.IsSupported()
}

// Handle stops a running pulser.
type Handle struct {
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
	pulses   atomic.Int64
}

// Stop halts pulsing; repeated calls are no-ops.
func (h *Handle) Stop() {
	if h == nil {
		return
	}

	h.stopOnce.Do(h.cancel)
}

// Done is closed when the pulse goroutine exits.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Pulses returns how many pulses were attempted.
func (h *Handle) Pulses() int64 {
	return h.pulses.Load()
}

// Start begins pulsing. An unsupported device yields an error and no goroutine.
// Individual pulse failures are logged and the loop keeps going: the haptic
// channel must outlive audio and recognition outages.
func (p *Pulser) Start(ctx context.Context) (*Handle, error) {
	if !p.Supported() {
		return nil, fmt.Errorf("haptic pulses: %w", alarm.ErrFeatureUnsupported)
	}

	pulseCtx, cancel := context.WithCancel(ctx)

	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)

		ticker := time.NewTicker(p.period)
		defer ticker.Stop()

		for pulseCtx.Err() == nil {
			h.pulses.Add(1)

			if err := p.device.Pulse(pulseCtx, p.pulse); err != nil && pulseCtx.Err() == nil {
				logger.WarnKV(pulseCtx, "Haptic pulse failed", "error", err)
			}

			select {
			case <-pulseCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return h, nil
}

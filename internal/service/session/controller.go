package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/gate"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/ports"
	"github.com/oshokin/alarm-clock/internal/service/haptic"
	"github.com/oshokin/alarm-clock/internal/service/playback"
	"github.com/oshokin/alarm-clock/internal/service/speech"
)

// DefaultTickInterval is the countdown tick period.
const DefaultTickInterval = time.Second

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrNotRinging is returned by requests that need a ringing session.
	ErrNotRinging = errors.New("session is not ringing")
)

// Params identifies the alarm that fired.
type Params struct {
	AlarmID     string
	Label       string
	VoiceMood   string
	SnoozeCount int
}

// Config holds the per-session options recognized by the host contract.
type Config struct {
	// VoiceEnabled prefers the spoken message over the tone.
	VoiceEnabled bool
	// RecognitionLocale is the speech recognition language, e.g. "en-US".
	RecognitionLocale string
	// HapticEnabled turns vibration pulses on.
	HapticEnabled bool
	// TickInterval is the countdown period; zero means DefaultTickInterval.
	TickInterval time.Duration
}

// Leaves are the independently running activities a controller owns.
// A nil leaf is treated as unsupported on this platform.
type Leaves struct {
	Voice      *playback.VoiceMessagePlayer
	Tone       *playback.ToneSynthesizer
	Recognizer *speech.Recognizer
	Haptic     *haptic.Pulser
	// Devices, when set, is closed once the session terminates to give back
	// the devices claimed for it.
	Devices io.Closer
}

// Controller runs the state machine of one ringing alarm.
type Controller struct {
	cfg    Config
	leaves Leaves
	gate   *gate.Gate
	out    *dispatcher
	now    func() time.Time

	// mu guards everything below.
	mu          sync.Mutex
	session     alarm.Session
	ctx         context.Context //nolint:containedctx // Session-scoped lifetime for leaves.
	cancel      context.CancelFunc
	audioSource alarm.AudioSource
	audioGen    uint64
	audio       *playback.Handle
	// audioStopped is closed once the last replaced audio handle has exited.
	audioStopped <-chan struct{}
	recognizer   *speech.Handle
	haptic       *haptic.Handle
	outcome      *alarm.Outcome

	finishOnce sync.Once
}

// New constructs an idle controller. The leaves are owned by the controller from now on.
func New(params Params, cfg Config, leaves Leaves, sink ports.EventSink) *Controller {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}

	return &Controller{
		cfg:    cfg,
		leaves: leaves,
		gate:   gate.New(),
		out:    newDispatcher(sink),
		now:    time.Now,
		session: alarm.Session{
			AlarmID:     params.AlarmID,
			Label:       params.Label,
			VoiceMood:   playback.NormalizeMood(params.VoiceMood),
			StartedAt:   time.Now(),
			SnoozeCount: params.SnoozeCount,
			State:       alarm.StateIdle,
		},
		audioSource: alarm.AudioSourceNone,
	}
}

// Start moves the session from Idle to Ringing and starts every leaf.
// Cancelling ctx later is equivalent to a Cancel signal.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.session.State {
	case alarm.StateIdle:
	case alarm.StateTerminated:
		return alarm.ErrSessionTerminated
	default:
		return ErrAlreadyStarted
	}

	ctx = logger.WithKV(logger.WithName(ctx, "session"), "alarm_id", c.session.AlarmID)
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))

	c.setStateLocked(alarm.StateRinging)
	logger.InfoKV(c.ctx, "Alarm ringing", "label", c.session.Label, "mood", c.session.VoiceMood)

	c.startAudioLocked(c.preferredSourceLocked())
	c.startHapticLocked()
	c.startRecognitionLocked()

	go c.tickLoop(c.ctx)

	stopWatch := context.AfterFunc(ctx, func() {
		c.Signal(alarm.SignalCancel)
	})

	go func(sessionCtx context.Context) {
		<-sessionCtx.Done()
		stopWatch()
	}(c.ctx)

	return nil
}

// Signal routes a host signal. It reports whether the signal resolved the
// session; late or losing attempts return false and change nothing.
func (c *Controller) Signal(sig alarm.Signal) bool {
	if sig == alarm.SignalCancel {
		won := c.gate.TryResolve(alarm.MethodCancel, alarm.ActionDismiss)
		c.finish()

		return won
	}

	method, action, ok := sig.Resolution()
	if !ok {
		return false
	}

	return c.resolve(method, action)
}

// ToggleAudioSource switches between the voice message and the tone and
// returns the source that will play. The active source is fully stopped
// before the other one starts, so the switch completes asynchronously.
func (c *Controller) ToggleAudioSource() (alarm.AudioSource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.State != alarm.StateRinging {
		return c.audioSource, ErrNotRinging
	}

	target := alarm.AudioSourceVoice
	if c.audioSource == alarm.AudioSourceVoice {
		target = alarm.AudioSourceTone
	}

	if target == alarm.AudioSourceVoice && !c.voiceAllowedLocked() {
		return c.audioSource, fmt.Errorf("switch to voice: %w", alarm.ErrFeatureDisabled)
	}

	if c.audio != nil {
		c.audioStopped = c.audio.Done()
		c.audio.Stop()
		c.audio = nil
	}

	logger.InfoKV(c.ctx, "Switching audio source", "from", c.audioSource, "to", target)

	// The new source waits for the old one to release the device. A later
	// toggle bumps the generation and termination leaves Ringing; either
	// makes this start stale.
	c.audioGen++
	gen, stopped := c.audioGen, c.audioStopped
	c.audioSource = target

	go c.startAudioAfter(gen, stopped, target)

	return target, nil
}

// startAudioAfter starts source once stopped is closed, unless the session
// moved on in the meantime.
func (c *Controller) startAudioAfter(gen uint64, stopped <-chan struct{}, source alarm.AudioSource) {
	if stopped != nil {
		<-stopped
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.State != alarm.StateRinging || gen != c.audioGen {
		return
	}

	c.audioStopped = nil
	c.startAudioLocked(source)
}

// Session returns a snapshot of the session.
func (c *Controller) Session() *alarm.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session.Clone()
}

// State returns the current state.
func (c *Controller) State() alarm.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session.State
}

// AudioSource returns the audio leaf that is currently playing.
func (c *Controller) AudioSource() alarm.AudioSource {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.audioSource
}

// Outcome returns the terminal outcome once the session has terminated.
func (c *Controller) Outcome() (alarm.Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.outcome == nil {
		return alarm.Outcome{}, false
	}

	return *c.outcome, true
}

// Done is closed after the terminal outcome has been delivered to the sink.
func (c *Controller) Done() <-chan struct{} {
	return c.out.done
}

// resolve records a user resolution through the gate and tears the session down.
func (c *Controller) resolve(method alarm.Method, action alarm.Action) bool {
	if c.State() != alarm.StateRinging {
		return false
	}

	if !c.gate.TryResolve(method, action) {
		return false
	}

	c.finish()

	return true
}

// finish performs the Terminated transition exactly once.
// Callers must have closed the gate first.
func (c *Controller) finish() {
	c.finishOnce.Do(func() {
		resolution, _ := c.gate.Resolution()

		c.mu.Lock()

		c.session.Resolution = resolution

		if c.session.State == alarm.StateRinging && resolution.Method != alarm.MethodCancel {
			if resolution.Action == alarm.ActionSnooze {
				c.setStateLocked(alarm.StateSnoozing)
			} else {
				c.setStateLocked(alarm.StateDismissing)
			}
		}

		c.setStateLocked(alarm.StateTerminated)

		audio, recognizer, pulser, cancel := c.audio, c.recognizer, c.haptic, c.cancel
		c.audio, c.recognizer, c.haptic = nil, nil, nil
		c.audioSource = alarm.AudioSourceNone

		outcome := alarm.Outcome{
			AlarmID:    c.session.AlarmID,
			Method:     resolution.Method,
			Snooze:     resolution.Action == alarm.ActionSnooze && resolution.Method != alarm.MethodCancel,
			ResolvedAt: resolution.ResolvedAt,
		}
		c.outcome = &outcome

		ctx := c.ctx
		if ctx == nil {
			ctx = context.Background()
		}

		c.mu.Unlock()

		// Best effort: each stop only signals its leaf and returns.
		audio.Stop()
		recognizer.Stop()
		pulser.Stop()

		if cancel != nil {
			cancel()
		}

		if c.leaves.Devices != nil {
			if err := c.leaves.Devices.Close(); err != nil {
				logger.WarnKV(ctx, "Failed to release devices", "error", err)
			}
		}

		logger.InfoKV(ctx, "Alarm resolved", "method", outcome.Method, "snooze", outcome.Snooze)

		c.out.closeWith(func(sink ports.EventSink) {
			sink.OnTerminal(outcome)
		})
	})
}

// setStateLocked records and announces a state change.
func (c *Controller) setStateLocked(state alarm.State) {
	if c.session.State == state {
		return
	}

	c.session.State = state

	c.out.post(func(sink ports.EventSink) {
		sink.OnStateChanged(state)
	})
}

// notifyLocked announces a capability change.
func (c *Controller) notifyLocked(capability alarm.Capability, available bool, reason error) {
	notice := alarm.CapabilityNotice{
		Capability: capability,
		Available:  available,
		Reason:     reason,
		At:         c.now(),
	}

	if reason != nil {
		notice.Kind = alarm.Classify(reason)
	}

	c.out.post(func(sink ports.EventSink) {
		sink.OnCapability(notice)
	})
}

// isRinging is the liveness check leaves consult at event time.
func (c *Controller) isRinging() bool {
	return c.State() == alarm.StateRinging
}

func (c *Controller) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.mu.Lock()
			if c.session.State == alarm.StateRinging {
				c.out.post(func(sink ports.EventSink) {
					sink.OnTick(now)
				})
			}
			c.mu.Unlock()
		}
	}
}

package session

import (
	"fmt"
	"time"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/ports"
	"github.com/oshokin/alarm-clock/internal/service/playback"
	"github.com/oshokin/alarm-clock/internal/service/speech"
)

// voiceAllowedLocked reports whether the voice leaf may be started.
func (c *Controller) voiceAllowedLocked() bool {
	return c.cfg.VoiceEnabled && c.leaves.Voice != nil
}

// preferredSourceLocked picks voice when allowed and tone otherwise,
// announcing why voice was skipped.
func (c *Controller) preferredSourceLocked() alarm.AudioSource {
	if c.voiceAllowedLocked() {
		return alarm.AudioSourceVoice
	}

	reason := fmt.Errorf("voice message: %w", alarm.ErrFeatureDisabled)
	if c.cfg.VoiceEnabled {
		reason = fmt.Errorf("voice message: %w", alarm.ErrFeatureUnsupported)
	}

	c.notifyLocked(alarm.CapabilityVoice, false, reason)

	return alarm.AudioSourceTone
}

// startAudioLocked starts source and tags it with a fresh generation, so
// failures reported by a replaced handle are recognized as stale.
func (c *Controller) startAudioLocked(source alarm.AudioSource) {
	c.audioGen++
	gen := c.audioGen

	switch source {
	case alarm.AudioSourceVoice:
		text := playback.ComposeMessage(c.session.Label, c.session.VoiceMood, c.now())
		c.audioSource = alarm.AudioSourceVoice
		c.audio = c.leaves.Voice.Start(c.ctx, c.session.VoiceMood, text, func(err error) {
			c.onAudioFailed(gen, alarm.AudioSourceVoice, err)
		})
	case alarm.AudioSourceTone:
		if c.leaves.Tone == nil {
			c.audioSource = alarm.AudioSourceNone
			c.notifyLocked(alarm.CapabilityTone, false, fmt.Errorf("tone: %w", alarm.ErrFeatureUnsupported))

			return
		}

		c.audioSource = alarm.AudioSourceTone
		c.audio = c.leaves.Tone.Start(c.ctx, func(err error) {
			c.onAudioFailed(gen, alarm.AudioSourceTone, err)
		})
	default:
		c.audioSource = alarm.AudioSourceNone
	}
}

// onAudioFailed handles AudioFailed from a playback loop.
// Voice falls back to tone in the same reaction; a failed tone leaves the
// session silent but still resolvable.
func (c *Controller) onAudioFailed(gen uint64, source alarm.AudioSource, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.State != alarm.StateRinging || gen != c.audioGen {
		return
	}

	logger.WarnKV(c.ctx, "Audio source failed", "source", source, "error", err)

	c.audio.Stop()
	c.audio = nil

	if source == alarm.AudioSourceVoice {
		c.notifyLocked(alarm.CapabilityVoice, false, err)
		c.startAudioLocked(alarm.AudioSourceTone)

		return
	}

	c.audioSource = alarm.AudioSourceNone
	c.notifyLocked(alarm.CapabilityTone, false, err)
}

func (c *Controller) startHapticLocked() {
	if !c.cfg.HapticEnabled {
		c.notifyLocked(alarm.CapabilityHaptic, false, fmt.Errorf("haptics: %w", alarm.ErrFeatureDisabled))

		return
	}

	if c.leaves.Haptic == nil {
		c.notifyLocked(alarm.CapabilityHaptic, false, fmt.Errorf("haptics: %w", alarm.ErrFeatureUnsupported))

		return
	}

	h, err := c.leaves.Haptic.Start(c.ctx)
	if err != nil {
		c.notifyLocked(alarm.CapabilityHaptic, false, err)

		return
	}

	c.haptic = h
}

func (c *Controller) startRecognitionLocked() {
	if c.leaves.Recognizer == nil {
		c.notifyLocked(alarm.CapabilityRecognition, false, fmt.Errorf("speech recognition: %w", alarm.ErrFeatureUnsupported))

		return
	}

	c.recognizer = c.leaves.Recognizer.
		WithLocale(c.cfg.RecognitionLocale).
		Start(c.ctx, c.isRinging, &recognitionListener{c: c})
}

// recognitionListener adapts recognizer events to the controller.
type recognitionListener struct {
	c *Controller
}

// acceptingLocked reports whether recognizer events may still affect the session.
// Events from a run that was stopped or gave up are dropped here.
func (l *recognitionListener) acceptingLocked() bool {
	return l.c.session.State == alarm.StateRinging && l.c.recognizer.Active()
}

func (l *recognitionListener) OnStarted() {
	logger.Debug(l.c.ctx, "Recognition cycle started")
}

func (l *recognitionListener) OnEnded() {
	logger.Debug(l.c.ctx, "Recognition cycle ended")
}

func (l *recognitionListener) OnError(err error) {
	logger.DebugKV(l.c.ctx, "Recognition cycle error", "error", err)
}

func (l *recognitionListener) OnUnavailable(err error) {
	c := l.c

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.State != alarm.StateRinging {
		return
	}

	logger.WarnKV(c.ctx, "Speech recognition unavailable, buttons and shake remain", "error", err)
	c.notifyLocked(alarm.CapabilityRecognition, false, err)
}

func (l *recognitionListener) OnTranscript(t ports.Transcript) {
	c := l.c

	c.mu.Lock()
	if !l.acceptingLocked() {
		c.mu.Unlock()

		return
	}

	text := t.Text
	c.out.post(func(sink ports.EventSink) {
		sink.OnTranscript(text)
	})
	c.mu.Unlock()

	if !t.IsFinal {
		return
	}

	switch speech.MapIntent(text) {
	case alarm.IntentDismiss:
		c.resolve(alarm.MethodVoice, alarm.ActionDismiss)
	case alarm.IntentSnooze:
		c.resolve(alarm.MethodVoice, alarm.ActionSnooze)
	case alarm.IntentUnrecognized:
		logger.DebugKV(c.ctx, "Unrecognized transcript", "text", text)
	}
}

// nopSink discards every event.
type nopSink struct{}

func (nopSink) OnStateChanged(alarm.State)          {}
func (nopSink) OnTranscript(string)                 {}
func (nopSink) OnTick(time.Time)                    {}
func (nopSink) OnCapability(alarm.CapabilityNotice) {}
func (nopSink) OnTerminal(alarm.Outcome)            {}

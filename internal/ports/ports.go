// Package ports declares the capability providers a ringing session drives
// and the sink it reports to. Hosts construct the implementations and inject
// them, so the session logic never probes the platform itself.
package ports

import (
	"context"
	"io"
	"time"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
)

// VoiceDevice speaks a wake message.
type VoiceDevice interface {
	// IsSupported reports whether the platform can produce speech at all.
	IsSupported() bool
	// Speak plays the message for mood and returns when playback ends or ctx is done.
	Speak(ctx context.Context, mood string, text string) error
}

// ToneDevice plays synthesized PCM audio.
type ToneDevice interface {
	IsSupported() bool
	// Play plays a WAV stream and returns when it ends or ctx is done.
	Play(ctx context.Context, wav io.Reader) error
}

// HapticDevice emits one physical pulse.
type HapticDevice interface {
	IsSupported() bool
	Pulse(ctx context.Context, duration time.Duration) error
}

// Transcript is one speech-to-text result.
type Transcript struct {
	Text    string
	IsFinal bool
}

// RecognitionStream is one listening cycle.
// Results is closed when the cycle ends; Err then reports why, nil for a clean end.
type RecognitionStream interface {
	Results() <-chan Transcript
	Err() error
	Close() error
}

// SpeechRecognitionProvider opens listening cycles.
type SpeechRecognitionProvider interface {
	IsSupported() bool
	Listen(ctx context.Context, locale string) (RecognitionStream, error)
}

// EventSink receives everything a session reports to its host.
// Calls are made from a single goroutine per session, in order.
type EventSink interface {
	OnStateChanged(state alarm.State)
	OnTranscript(text string)
	OnTick(now time.Time)
	OnCapability(notice alarm.CapabilityNotice)
	OnTerminal(outcome alarm.Outcome)
}

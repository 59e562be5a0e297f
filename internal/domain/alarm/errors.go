package alarm

import (
	"errors"
	"time"
)

var (
	// ErrDeviceUnavailable means the audio output or microphone is busy or denied.
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrFeatureUnsupported means the platform lacks the capability entirely.
	ErrFeatureUnsupported = errors.New("feature unsupported")
	// ErrFeatureDisabled means the capability was turned off by configuration.
	ErrFeatureDisabled = errors.New("feature disabled by configuration")
	// ErrTransientRecognition is a single failed recognition cycle.
	ErrTransientRecognition = errors.New("transient recognition error")
	// ErrRestartExhausted means recognition failed too many times in a row.
	ErrRestartExhausted = errors.New("recognition restart attempts exhausted")
	// ErrSessionTerminated is returned for host requests that arrive after termination.
	ErrSessionTerminated = errors.New("session terminated")
	// ErrUnknownSignal is returned for unparseable signal names.
	ErrUnknownSignal = errors.New("unknown signal")
)

// Kind is the taxonomy bucket of a leaf failure.
type Kind string

const (
	KindDeviceUnavailable  Kind = "device_unavailable"
	KindFeatureUnsupported Kind = "feature_unsupported"
	KindFeatureDisabled    Kind = "feature_disabled"
	KindTransient          Kind = "transient_recognition_error"
	KindRestartExhausted   Kind = "restart_exhausted"
)

// Classify maps err onto the failure taxonomy.
// Anything not explicitly tagged is treated as a busy or failing device.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrFeatureUnsupported):
		return KindFeatureUnsupported
	case errors.Is(err, ErrFeatureDisabled):
		return KindFeatureDisabled
	case errors.Is(err, ErrRestartExhausted):
		return KindRestartExhausted
	case errors.Is(err, ErrTransientRecognition):
		return KindTransient
	default:
		return KindDeviceUnavailable
	}
}

// Capability names a leaf whose availability is reported to the host.
type Capability string

const (
	CapabilityVoice       Capability = "voice"
	CapabilityTone        Capability = "tone"
	CapabilityRecognition Capability = "recognition"
	CapabilityHaptic      Capability = "haptic"
)

// CapabilityNotice is the informational flag sent when a leaf degrades.
// It never ends the session.
type CapabilityNotice struct {
	// Capability is the affected leaf.
	Capability Capability
	// Available is false when the leaf stopped working for the rest of the session.
	Available bool
	// Kind classifies Reason.
	Kind Kind
	// Reason is the underlying failure, if any.
	Reason error
	// At is when the controller observed the change.
	At time.Time
}

package alarm

import (
	"fmt"
	"strings"
)

// Signal is an inbound request from the host.
type Signal string

const (
	// SignalManualButton is the dismiss button.
	SignalManualButton Signal = "manual_button"
	// SignalSnoozeButton is the snooze button.
	SignalSnoozeButton Signal = "snooze_button"
	// SignalShakeGesture dismisses the alarm from a shake of the device.
	SignalShakeGesture Signal = "shake_gesture"
	// SignalCancel tears the session down, whatever its state.
	SignalCancel Signal = "cancel"
)

// Resolution maps a resolving signal to the method and action it records.
// Cancel reports ok=false because it is not a user resolution.
func (s Signal) Resolution() (Method, Action, bool) {
	switch s {
	case SignalManualButton:
		return MethodButton, ActionDismiss, true
	case SignalSnoozeButton:
		return MethodButton, ActionSnooze, true
	case SignalShakeGesture:
		return MethodShake, ActionDismiss, true
	default:
		return "", "", false
	}
}

// ParseSignal accepts canonical names and the short words typed at the ringer prompt.
func ParseSignal(s string) (Signal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(SignalManualButton), "dismiss", "button", "off":
		return SignalManualButton, nil
	case string(SignalSnoozeButton), "snooze":
		return SignalSnoozeButton, nil
	case string(SignalShakeGesture), "shake":
		return SignalShakeGesture, nil
	case string(SignalCancel):
		return SignalCancel, nil
	default:
		return "", fmt.Errorf("signal %q: %w", s, ErrUnknownSignal)
	}
}

// Intent is the classification of a spoken transcript.
type Intent string

const (
	// IntentDismiss asks to turn the alarm off.
	IntentDismiss Intent = "dismiss"
	// IntentSnooze asks for more sleep.
	IntentSnooze Intent = "snooze"
	// IntentUnrecognized is anything else; it is shown to the user and otherwise ignored.
	IntentUnrecognized Intent = "unrecognized"
)

// AudioSource is the active sound leaf.
type AudioSource string

const (
	// AudioSourceNone means neither voice nor tone is playing.
	AudioSourceNone AudioSource = "none"
	// AudioSourceVoice is the spoken wake message.
	AudioSourceVoice AudioSource = "voice"
	// AudioSourceTone is the synthesized fallback beep.
	AudioSourceTone AudioSource = "tone"
)

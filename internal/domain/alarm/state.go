package alarm

import "time"

// State is a position in the ringing session state machine.
type State string

const (
	// StateIdle is the state of a session that has not started yet.
	StateIdle State = "idle"
	// StateRinging means every leaf is running and resolutions are accepted.
	StateRinging State = "ringing"
	// StateDismissing is entered once a dismiss resolution wins the gate.
	StateDismissing State = "dismissing"
	// StateSnoozing is entered once a snooze resolution wins the gate.
	StateSnoozing State = "snoozing"
	// StateTerminated is absorbing: leaves are stopped and the outcome has been emitted.
	StateTerminated State = "terminated"
)

// IsResolved reports whether a session in this state must carry a resolution.
func (s State) IsResolved() bool {
	return s == StateDismissing || s == StateSnoozing || s == StateTerminated
}

// Method identifies the channel that produced a resolution.
type Method string

const (
	// MethodVoice is a recognized spoken command.
	MethodVoice Method = "voice"
	// MethodButton is an on-screen dismiss or snooze button.
	MethodButton Method = "button"
	// MethodShake is a shake gesture reported by a motion sensor.
	MethodShake Method = "shake"
	// MethodCancel is a host-side cancellation, e.g. the session view was unmounted.
	MethodCancel Method = "cancel"
)

// Action is what a resolution does to the alarm.
type Action string

const (
	// ActionDismiss turns the alarm off.
	ActionDismiss Action = "dismiss"
	// ActionSnooze postpones the alarm; the external store bumps the snooze counter.
	ActionSnooze Action = "snooze"
)

// Resolution is the single authoritative outcome of a session.
type Resolution struct {
	// Method is the channel that won the gate.
	Method Method
	// Action is dismiss or snooze.
	Action Action
	// ResolvedAt is when the gate accepted the resolution.
	ResolvedAt time.Time
}

// Clone returns a copy of the resolution.
func (r *Resolution) Clone() *Resolution {
	if r == nil {
		return nil
	}

	cloned := *r

	return &cloned
}

// Session describes one alarm-ring occurrence.
type Session struct {
	// AlarmID identifies the alarm in the external alarm store.
	AlarmID string
	// Label is the user-facing alarm name.
	Label string
	// VoiceMood selects the wake message personality.
	VoiceMood string
	// StartedAt is set once when the session is constructed.
	StartedAt time.Time
	// SnoozeCount is carried in from previous sessions of the same alarm.
	SnoozeCount int
	// State is the current state machine position.
	State State
	// Resolution is set exactly once, when the gate accepts an attempt.
	Resolution *Resolution
}

// Clone returns a copy of the session to avoid leaking internal references.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.Resolution = s.Resolution.Clone()

	return &cloned
}

// Outcome is delivered to the host exactly once when a session terminates.
type Outcome struct {
	// AlarmID identifies the alarm the outcome belongs to.
	AlarmID string
	// Method is the resolving channel.
	Method Method
	// Snooze is true when the alarm should ring again later.
	Snooze bool
	// ResolvedAt is when the resolution was recorded.
	ResolvedAt time.Time
}

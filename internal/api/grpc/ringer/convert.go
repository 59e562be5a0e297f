package ringer

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/service/host"
	"github.com/oshokin/alarm-clock/internal/service/session"
)

// Struct field names used on the wire.
const (
	fieldSessionID         = "session_id"
	fieldAlarmID           = "alarm_id"
	fieldLabel             = "label"
	fieldVoiceMood         = "voice_mood"
	fieldSnoozeCount       = "snooze_count"
	fieldVoiceEnabled      = "voice_enabled"
	fieldRecognitionLocale = "recognition_locale"
	fieldHapticEnabled     = "haptic_enabled"
	fieldSignal            = "signal"
	fieldSeq               = "seq"
	fieldKind              = "kind"
	fieldAt                = "at"
	fieldState             = "state"
	fieldTranscript        = "transcript"
	fieldCapability        = "capability"
	fieldAvailable         = "available"
	fieldErrorKind         = "error_kind"
	fieldReason            = "reason"
	fieldMethod            = "method"
	fieldSnooze            = "snooze"
	fieldResolvedAt        = "resolved_at"
)

var errMissingField = errors.New("missing required field")

// StartOptions overrides the host defaults for one session. Nil fields keep the default.
type StartOptions struct {
	VoiceEnabled      *bool
	RecognitionLocale string
	HapticEnabled     *bool
}

func startRequestToStruct(params session.Params, opts StartOptions) (*structpb.Struct, error) {
	fields := map[string]any{
		fieldAlarmID:     params.AlarmID,
		fieldLabel:       params.Label,
		fieldVoiceMood:   params.VoiceMood,
		fieldSnoozeCount: params.SnoozeCount,
	}

	if opts.VoiceEnabled != nil {
		fields[fieldVoiceEnabled] = *opts.VoiceEnabled
	}

	if opts.RecognitionLocale != "" {
		fields[fieldRecognitionLocale] = opts.RecognitionLocale
	}

	if opts.HapticEnabled != nil {
		fields[fieldHapticEnabled] = *opts.HapticEnabled
	}

	return structpb.NewStruct(fields)
}

// structToStartRequest decodes a StartSession request over defaults.
func structToStartRequest(s *structpb.Struct, defaults session.Config) host.Request {
	fields := s.GetFields()

	req := host.Request{
		Params: session.Params{
			AlarmID:     fields[fieldAlarmID].GetStringValue(),
			Label:       fields[fieldLabel].GetStringValue(),
			VoiceMood:   fields[fieldVoiceMood].GetStringValue(),
			SnoozeCount: int(fields[fieldSnoozeCount].GetNumberValue()),
		},
		Config: defaults,
	}

	if v, ok := fields[fieldVoiceEnabled]; ok {
		req.Config.VoiceEnabled = v.GetBoolValue()
	}

	if v := fields[fieldRecognitionLocale].GetStringValue(); v != "" {
		req.Config.RecognitionLocale = v
	}

	if v, ok := fields[fieldHapticEnabled]; ok {
		req.Config.HapticEnabled = v.GetBoolValue()
	}

	return req
}

func signalToStruct(sessionID string, sig alarm.Signal) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldSessionID: sessionID,
		fieldSignal:    string(sig),
	})
}

func structToSignal(s *structpb.Struct) (string, alarm.Signal, error) {
	fields := s.GetFields()

	sessionID := fields[fieldSessionID].GetStringValue()
	if sessionID == "" {
		return "", "", fmt.Errorf("%w: %s", errMissingField, fieldSessionID)
	}

	sig, err := alarm.ParseSignal(fields[fieldSignal].GetStringValue())
	if err != nil {
		return "", "", err
	}

	return sessionID, sig, nil
}

// EventToStruct encodes a session event for the wire.
func EventToStruct(ev host.Event) (*structpb.Struct, error) {
	fields := map[string]any{
		fieldSessionID: ev.SessionID,
		fieldSeq:       float64(ev.Seq),
		fieldKind:      string(ev.Kind),
		fieldAt:        formatTime(ev.At),
	}

	switch ev.Kind {
	case host.EventStateChanged:
		fields[fieldState] = string(ev.State)
	case host.EventTranscript:
		fields[fieldTranscript] = ev.Transcript
	case host.EventCapability:
		if ev.Notice != nil {
			fields[fieldCapability] = string(ev.Notice.Capability)
			fields[fieldAvailable] = ev.Notice.Available
			fields[fieldErrorKind] = string(ev.Notice.Kind)

			if ev.Notice.Reason != nil {
				fields[fieldReason] = ev.Notice.Reason.Error()
			}
		}
	case host.EventTerminal:
		if ev.Outcome != nil {
			fields[fieldAlarmID] = ev.Outcome.AlarmID
			fields[fieldMethod] = string(ev.Outcome.Method)
			fields[fieldSnooze] = ev.Outcome.Snooze
			fields[fieldResolvedAt] = formatTime(ev.Outcome.ResolvedAt)
		}
	case host.EventTick:
	}

	return structpb.NewStruct(fields)
}

// EventFromStruct decodes a wire event. Unknown fields are ignored.
func EventFromStruct(s *structpb.Struct) host.Event {
	fields := s.GetFields()

	ev := host.Event{
		SessionID: fields[fieldSessionID].GetStringValue(),
		Seq:       uint64(fields[fieldSeq].GetNumberValue()),
		Kind:      host.EventKind(fields[fieldKind].GetStringValue()),
		At:        parseTime(fields[fieldAt].GetStringValue()),
	}

	switch ev.Kind {
	case host.EventStateChanged:
		ev.State = alarm.State(fields[fieldState].GetStringValue())
	case host.EventTranscript:
		ev.Transcript = fields[fieldTranscript].GetStringValue()
	case host.EventCapability:
		ev.Notice = &alarm.CapabilityNotice{
			Capability: alarm.Capability(fields[fieldCapability].GetStringValue()),
			Available:  fields[fieldAvailable].GetBoolValue(),
			Kind:       alarm.Kind(fields[fieldErrorKind].GetStringValue()),
			At:         ev.At,
		}

		if reason := fields[fieldReason].GetStringValue(); reason != "" {
			ev.Notice.Reason = errors.New(reason)
		}
	case host.EventTerminal:
		ev.Outcome = &alarm.Outcome{
			AlarmID:    fields[fieldAlarmID].GetStringValue(),
			Method:     alarm.Method(fields[fieldMethod].GetStringValue()),
			Snooze:     fields[fieldSnooze].GetBoolValue(),
			ResolvedAt: parseTime(fields[fieldResolvedAt].GetStringValue()),
		}
	case host.EventTick:
	}

	return ev
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}

	return t
}

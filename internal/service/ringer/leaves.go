package ringer

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/oshokin/alarm-clock/internal/config"
	"github.com/oshokin/alarm-clock/internal/platform/command"
	"github.com/oshokin/alarm-clock/internal/platform/exclusive"
	"github.com/oshokin/alarm-clock/internal/repository/outcome"
	"github.com/oshokin/alarm-clock/internal/service/haptic"
	"github.com/oshokin/alarm-clock/internal/service/host"
	"github.com/oshokin/alarm-clock/internal/service/playback"
	"github.com/oshokin/alarm-clock/internal/service/session"
	"github.com/oshokin/alarm-clock/internal/service/speech"
)

const (
	speakerLockName    = "alarm-clock-speaker"
	microphoneLockName = "alarm-clock-microphone"
)

// NewLeavesFactory returns a factory building the leaves of one session from
// cfg. Sessions share the speaker and microphone locks, and each session
// claims them under its own ID, so overlapping sessions never share a device.
func NewLeavesFactory(cfg *config.Config) host.LeavesFactory {
	timing := cfg.Timing
	devices := cfg.Devices

	// Voice and tone share the speaker; the recognizer owns the microphone.
	speaker := exclusive.New(devices.LockDir, speakerLockName)
	microphone := exclusive.New(devices.LockDir, microphoneLockName)

	return func(_ context.Context, req host.Request) (session.Leaves, error) {
		owner := req.SessionID
		if owner == "" {
			owner = req.Params.AlarmID
		}

		speakerClaim := speaker.Claim(owner)
		microphoneClaim := microphone.Claim(owner)

		voice := playback.NewVoiceMessagePlayer(
			command.NewVoiceDevice(devices.SpeechCommand, devices.PlayerCommand, cfg.VoicePack.Dir, speakerClaim),
			timing.Duration(timing.VoiceInterval),
			cfg.Session.VoiceLoop,
		)

		tone := playback.NewToneSynthesizer(
			command.NewToneDevice(devices.PlayerCommand, speakerClaim),
			timing.Duration(timing.ToneInterval),
			playback.DefaultToneSpec(),
		)

		recognizer := speech.NewRecognizer(
			command.NewRecognizer(devices.RecognizerCommand, microphoneClaim),
			speech.Config{
				Locale:      cfg.Session.RecognitionLocale,
				Backoff:     timing.Duration(timing.RecognitionBackoff),
				MaxFailures: timing.MaxRestartFailures,
			},
		)

		pulser := haptic.NewPulser(
			command.NewHapticDevice(devices.HapticCommand),
			timing.Duration(timing.HapticPeriod),
			timing.HapticPulse,
		)

		return session.Leaves{
			Voice:      voice,
			Tone:       tone,
			Recognizer: recognizer,
			Haptic:     pulser,
			Devices:    deviceClaims{speakerClaim, microphoneClaim},
		}, nil
	}
}

// deviceClaims gives back every device a session claimed.
type deviceClaims []*exclusive.Claim

func (c deviceClaims) Close() error {
	var err error

	for _, claim := range c {
		err = multierr.Append(err, claim.Close())
	}

	return err
}

// OpenJournal opens the outcome journal configured in cfg.
// It returns nil when journaling is disabled.
func OpenJournal(ctx context.Context, cfg *config.Config) (outcome.Store, error) {
	if cfg.JournalFile == "" {
		return nil, nil //nolint:nilnil // Journaling is optional.
	}

	store, err := outcome.Open(ctx, cfg.JournalFile)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	return store, nil
}

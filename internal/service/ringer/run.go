package ringer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/oshokin/alarm-clock/internal/config"
	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/service/host"
	"github.com/oshokin/alarm-clock/internal/service/playback"
	"github.com/oshokin/alarm-clock/internal/service/session"
)

// toggleCommand is the input line that switches between voice and tone.
const toggleCommand = "toggle"

// shutdownTimeout bounds the wait for the terminal event after cancellation.
const shutdownTimeout = 5 * time.Second

// Options configures one foreground ring.
type Options struct {
	// ConfigPath to YAML settings file; a missing default file means built-in defaults.
	ConfigPath string
	// AlarmID identifies the alarm; empty generates one.
	AlarmID string
	// Label is spoken in the wake message.
	Label string
	// Mood selects the voice persona.
	Mood string
	// SnoozeCount is how many times the alarm was snoozed already.
	SnoozeCount int
	// ShowTicks prints the countdown ticks.
	ShowTicks bool
	// Input provides signal lines; nil means no interactive signals.
	Input io.Reader
	// Output receives event lines; nil discards them.
	Output io.Writer
	// Color styles event lines for a terminal.
	Color bool
}

// ErrNoOutcome is returned when the session ended without a terminal event.
var ErrNoOutcome = errors.New("alarm ended without an outcome")

// Run rings one alarm until it is resolved or ctx is canceled, and returns the outcome.
//
//nolint:funlen // Linear wiring of one foreground session.
func Run(ctx context.Context, opts *Options) (*alarm.Outcome, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-ringer")

	// Load settings, falling back to defaults when no file was written yet.
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	cfg.ApplyLogLevel()

	output := opts.Output
	if output == nil {
		output = io.Discard
	}

	journal, err := OpenJournal(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if journal != nil {
		defer func() {
			_ = journal.Close()
		}()
	}

	// The ringer is a host with a single session.
	manager := host.NewManager(ctx, NewLeavesFactory(cfg), host.Options{
		Journal: journal,
	})

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if closeErr := manager.Close(closeCtx); closeErr != nil {
			logger.WarnKV(ctx, "Session did not shut down cleanly", "error", closeErr)
		}
	}()

	sessionID, err := manager.Start(host.Request{
		Params: session.Params{
			AlarmID:     opts.AlarmID,
			Label:       opts.Label,
			VoiceMood:   playback.NormalizeMood(opts.Mood),
			SnoozeCount: opts.SnoozeCount,
		},
		Config: cfg.SessionOptions(),
	})
	if err != nil {
		return nil, fmt.Errorf("start alarm: %w", err)
	}

	events, unsubscribe, err := manager.Subscribe(sessionID)
	if err != nil {
		return nil, err
	}

	defer unsubscribe()

	if opts.Input != nil {
		go readSignals(ctx, manager, sessionID, opts.Input, output)
	}

	var colors *palette
	if opts.Color {
		colors = newPalette(output)
	}

	startedAt := time.Now()

	for ev := range events {
		if ev.Kind != host.EventTick || opts.ShowTicks {
			_, _ = fmt.Fprintln(output, colors.render(ev, FormatEvent(ev, startedAt)))
		}

		if ev.Kind == host.EventTerminal && ev.Outcome != nil {
			return ev.Outcome, nil
		}
	}

	return nil, ErrNoOutcome
}

// readSignals turns input lines into signals until the input ends.
// Input ending does not stop the alarm.
func readSignals(ctx context.Context, manager *host.Manager, sessionID string, input io.Reader, output io.Writer) {
	scanner := bufio.NewScanner(input)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.EqualFold(line, toggleCommand) {
			source, err := manager.ToggleAudioSource(sessionID)
			if err != nil {
				_, _ = fmt.Fprintf(output, "cannot toggle audio: %v\n", err)

				continue
			}

			_, _ = fmt.Fprintf(output, "audio source: %s\n", source)

			continue
		}

		sig, err := alarm.ParseSignal(line)
		if err != nil {
			_, _ = fmt.Fprintln(output, "unknown command, use dismiss, snooze, shake, cancel or toggle")

			continue
		}

		resolved, err := manager.Signal(sessionID, sig)
		if err != nil {
			logger.WarnKV(ctx, "Signal failed", "signal", sig, "error", err)

			return
		}

		if resolved {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		logger.WarnKV(ctx, "Reading signals failed", "error", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}

	if (path == "" || path == config.DefaultConfigFilename) && errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}

	return nil, fmt.Errorf("load settings: %w", err)
}

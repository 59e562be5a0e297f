package client

import (
	"context"
	"fmt"
	"io"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/alarm-clock/internal/api/grpc/ringer"
	"github.com/oshokin/alarm-clock/internal/config"
	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/service/host"
	"github.com/oshokin/alarm-clock/internal/service/ringer"
	"github.com/oshokin/alarm-clock/internal/service/session"
)

// Options configures the connection shared by every client command.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
	// Output receives command results; nil discards them.
	Output io.Writer
}

// StartRequest describes the alarm to ring remotely.
type StartRequest struct {
	Params  session.Params
	Options api.StartOptions
	// Watch keeps streaming the new session's events after starting it.
	Watch bool
	// JSON prints watched events as protojson instead of console lines.
	JSON bool
}

// Start rings an alarm on the host and prints the session ID.
func Start(ctx context.Context, opts *Options, req *StartRequest) error {
	return withClient(ctx, opts, func(ctx context.Context, client *api.Client, out io.Writer) error {
		id, err := client.StartSession(ctx, req.Params, req.Options)
		if err != nil {
			return err
		}

		logger.InfoKV(ctx, "Session started", "session_id", id)

		_, _ = fmt.Fprintln(out, id)

		if !req.Watch {
			return nil
		}

		return watch(ctx, client, out, id, req.JSON)
	})
}

// Signal sends a signal such as dismiss or snooze to a session.
func Signal(ctx context.Context, opts *Options, sessionID, signalName string) error {
	sig, err := alarm.ParseSignal(signalName)
	if err != nil {
		return err
	}

	return withClient(ctx, opts, func(ctx context.Context, client *api.Client, out io.Writer) error {
		resolved, err := client.Signal(ctx, sessionID, sig)
		if err != nil {
			return err
		}

		if resolved {
			_, _ = fmt.Fprintf(out, "session %s resolved by %s\n", sessionID, sig)
		} else {
			_, _ = fmt.Fprintf(out, "session %s was already resolved\n", sessionID)
		}

		return nil
	})
}

// Toggle switches a session between the voice message and the tone.
func Toggle(ctx context.Context, opts *Options, sessionID string) error {
	return withClient(ctx, opts, func(ctx context.Context, client *api.Client, out io.Writer) error {
		source, err := client.ToggleAudioSource(ctx, sessionID)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(out, "audio source: %s\n", source)

		return nil
	})
}

// Watch prints a session's events until it terminates.
func Watch(ctx context.Context, opts *Options, sessionID string, asJSON bool) error {
	return withClient(ctx, opts, func(ctx context.Context, client *api.Client, out io.Writer) error {
		return watch(ctx, client, out, sessionID, asJSON)
	})
}

func watch(ctx context.Context, client *api.Client, out io.Writer, sessionID string, asJSON bool) error {
	var startedAt time.Time

	return client.Watch(ctx, sessionID, func(msg *structpb.Struct) error {
		if asJSON {
			data, err := protojson.Marshal(msg)
			if err != nil {
				return fmt.Errorf("encode event: %w", err)
			}

			_, err = fmt.Fprintln(out, string(data))

			return err
		}

		ev := api.EventFromStruct(msg)

		if startedAt.IsZero() && ev.Kind == host.EventStateChanged && ev.State == alarm.StateRinging {
			startedAt = ev.At
		}

		_, err := fmt.Fprintln(out, ringer.FormatEvent(ev, startedAt))

		return err
	})
}

// withClient loads settings, dials the host and runs fn with a named logger.
func withClient(
	ctx context.Context,
	opts *Options,
	fn func(ctx context.Context, client *api.Client, out io.Writer) error,
) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-ring-signal")

	// Use server address from options if provided, otherwise use config.
	serverAddress := opts.ServerAddress
	if serverAddress == "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return err
		}

		serverAddress = cfg.ServerAddress
	}

	client, err := api.Dial(serverAddress)
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	out := opts.Output
	if out == nil {
		out = io.Discard
	}

	return fn(ctx, client, out)
}

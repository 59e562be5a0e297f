package client

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	api "github.com/oshokin/alarm-clock/internal/api/grpc/ringer"
	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/service/host"
	"github.com/oshokin/alarm-clock/internal/service/session"
)

// startHost serves a ring host with no devices on a loopback port.
func startHost(t *testing.T) string {
	t.Helper()

	manager := host.NewManager(context.Background(), func(context.Context, host.Request) (session.Leaves, error) {
		return session.Leaves{}, nil
	}, host.Options{})

	lc := net.ListenConfig{}

	lis, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	api.NewServer(manager, session.Config{TickInterval: 10 * time.Millisecond}).Register(srv)

	go func() {
		_ = srv.Serve(lis)
	}()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = manager.Close(ctx)

		srv.Stop()
	})

	return lis.Addr().String()
}

// TestCommands runs every client command against a live host.
func TestCommands(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	addr := startHost(t)

	var out strings.Builder

	opts := &Options{ServerAddress: addr, Output: &out}

	require.NoError(t, Start(ctx, opts, &StartRequest{Params: session.Params{AlarmID: "remote", Label: "Remote"}}))

	id := strings.TrimSpace(out.String())
	require.NotEmpty(t, id)

	out.Reset()
	require.Error(t, Toggle(ctx, opts, id))

	require.NoError(t, Signal(ctx, opts, id, "snooze"))
	require.Contains(t, out.String(), "resolved by snooze_button")

	out.Reset()
	require.NoError(t, Signal(ctx, opts, id, "dismiss"))
	require.Contains(t, out.String(), "already resolved")

	out.Reset()
	require.NoError(t, Watch(ctx, opts, id, false))
	require.Contains(t, out.String(), "state: ringing")
	require.Contains(t, out.String(), "alarm remote snoozed by button")

	out.Reset()
	require.NoError(t, Watch(ctx, opts, id, true))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.NotEmpty(t, lines)

	for _, line := range lines {
		require.True(t, strings.HasPrefix(line, "{"), line)
		require.Contains(t, line, `"kind"`)
	}

	require.Contains(t, lines[len(lines)-1], `"terminal"`)
}

// TestStartAndWatch checks that a started session can be followed to its end.
func TestStartAndWatch(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	addr := startHost(t)

	client, err := api.Dial(addr)
	require.NoError(t, err)

	defer func() {
		_ = client.Close()
	}()

	var out syncWriter

	done := make(chan error, 1)

	go func() {
		done <- Start(ctx, &Options{ServerAddress: addr, Output: &out}, &StartRequest{Watch: true})
	}()

	var id string

	require.Eventually(t, func() bool {
		first, _, found := strings.Cut(out.String(), "\n")
		id = first

		return found && id != ""
	}, 5*time.Second, 10*time.Millisecond)

	resolved, err := client.Signal(ctx, id, alarm.SignalCancel)
	require.NoError(t, err)
	require.True(t, resolved)

	require.NoError(t, <-done)
	require.Contains(t, out.String(), "dismissed by cancel")
}

// TestSignalRejectsUnknownName checks validation before dialing.
func TestSignalRejectsUnknownName(t *testing.T) {
	t.Parallel()

	err := Signal(context.Background(), &Options{ServerAddress: "127.0.0.1:1"}, "id", "wave")
	require.ErrorIs(t, err, alarm.ErrUnknownSignal)
}

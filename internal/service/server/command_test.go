package server

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	api "github.com/oshokin/alarm-clock/internal/api/grpc/ringer"
	"github.com/oshokin/alarm-clock/internal/config"
	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/service/session"
)

// TestResolveListenAddress covers override, config and error paths.
func TestResolveListenAddress(t *testing.T) {
	t.Parallel()

	addr, err := resolveListenAddress("127.0.0.1:50061", ":9090")
	require.NoError(t, err)
	require.Equal(t, ":9090", addr)

	addr, err = resolveListenAddress("127.0.0.1:50061", "")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:50061", addr)

	_, err = resolveListenAddress("", "")
	require.ErrorIs(t, err, ErrNoServerAddress)

	_, err = resolveListenAddress("no-port", "")
	require.Error(t, err)
}

// freeAddress reserves a loopback port and releases it for the server.
func freeAddress(t *testing.T) string {
	t.Helper()

	lc := net.ListenConfig{}

	lis, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	return addr
}

// TestRunServesAndStops starts a real server, rings a session and shuts down.
func TestRunServesAndStops(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	addr := freeAddress(t)

	cfg := config.Default()
	cfg.ServerAddress = addr
	cfg.Timing.Unit = 10 * time.Millisecond
	cfg.Devices.LockDir = dir

	path := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, config.Save(path, cfg))

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)

	go func() {
		runErr <- Run(ctx, &Options{ConfigPath: path})
	}()

	client, err := api.Dial(addr)
	require.NoError(t, err)

	defer func() {
		_ = client.Close()
	}()

	var id string

	require.Eventually(t, func() bool {
		id, err = client.StartSession(context.Background(), session.Params{Label: "Server"}, api.StartOptions{})

		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	resolved, err := client.Signal(context.Background(), id, alarm.SignalShakeGesture)
	require.NoError(t, err)
	require.True(t, resolved)

	cancel()

	select {
	case err = <-runErr:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "server did not stop")
	}

	_, err = os.Stat(path)
	require.NoError(t, err)
}

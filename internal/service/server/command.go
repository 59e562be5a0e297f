package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"

	api "github.com/oshokin/alarm-clock/internal/api/grpc/ringer"
	"github.com/oshokin/alarm-clock/internal/config"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/service/host"
	"github.com/oshokin/alarm-clock/internal/service/ringer"
)

// Options controls the alarm-ring-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// Retention is how long finished sessions stay watchable; zero keeps the default.
	Retention time.Duration
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// shutdownTimeout bounds how long ringing sessions get to wind down.
const shutdownTimeout = 5 * time.Second

// Run starts the gRPC server and blocks until context is canceled or server stops.
// Loads configuration first, then determines listen address from config or override.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-ring-server")

	// Load configuration first to get server and device settings.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	settings.ApplyLogLevel()

	// Determine listen address: CLI argument overrides config port extraction.
	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	journal, err := ringer.OpenJournal(ctx, settings)
	if err != nil {
		return err
	}

	if journal != nil {
		defer func() {
			_ = journal.Close()
		}()
	}

	// Sessions outlive individual requests; they end on signals or shutdown.
	manager := host.NewManager(context.WithoutCancel(ctx), ringer.NewLeavesFactory(settings), host.Options{
		Retention: opts.Retention,
		Journal:   journal,
	})

	// Setup TCP listener for gRPC server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	// Create and configure gRPC server with the ringer service.
	grpcServer := grpc.NewServer()
	api.NewServer(manager, settings.SessionOptions()).Register(grpcServer)

	logger.InfoKV(ctx, "Ring host listening", "listen_address", listenAddress)

	// Done channel is closed after shutdown finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down ring host")

		// Cancel ringing sessions first so open watch streams can end.
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		if closeErr := manager.Close(closeCtx); closeErr != nil {
			logger.WarnKV(ctx, "Sessions did not shut down cleanly", "error", closeErr)
		}

		cancel()

		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "Ring host stopped")

	return nil
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise keeps the configured
// host and port, so the default loopback address stays on loopback.
func resolveListenAddress(configAddr, override string) (string, error) {
	// Use override address if provided (e.g., ":9090", "0.0.0.0:8080").
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	// Validate the configured address shape.
	if _, _, err := net.SplitHostPort(configAddr); err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	return configAddr, nil
}

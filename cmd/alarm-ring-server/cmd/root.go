package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-clock/internal/config"
	"github.com/oshokin/alarm-clock/internal/service/server"
	"github.com/oshokin/alarm-clock/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// retention keeps finished sessions watchable for this long.
	retention time.Duration

	// rootCmd represents the base command for running the ring host.
	rootCmd = &cobra.Command{
		Use:   "alarm-ring-server [listen-address]",
		Short: "Run the ring host that starts and resolves alarm sessions.",
		Long: `Starts the gRPC ring host. Each StartSession request rings a new alarm session
using the devices from the configuration file; signals, audio toggles and event
streams address the session by the ID returned on start.

The server listens on the configured server_addr unless an address argument is
given (e.g., :9090, 0.0.0.0:50061). On shutdown every ringing session is
cancelled before the server stops.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return server.Run(ctx, &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				Retention:     retention,
			})
		},
	}
)

// Execute runs the alarm-ring-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().DurationVar(&retention, "retention", 0, "how long finished sessions stay watchable (default 1h)")
}

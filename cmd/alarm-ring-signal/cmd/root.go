package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-clock/internal/config"
	"github.com/oshokin/alarm-clock/internal/service/client"
	"github.com/oshokin/alarm-clock/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// serverAddress overrides the configured ring host address.
	serverAddress string
	// asJSON prints watched events as JSON.
	asJSON bool

	// startRequest collects the start command flags.
	startRequest client.StartRequest
	// voiceEnabled and hapticEnabled override host defaults when set.
	voiceEnabled  bool
	hapticEnabled bool

	// rootCmd represents the base command for talking to a ring host.
	rootCmd = &cobra.Command{
		Use:   "alarm-ring-signal",
		Short: "Start, signal and watch alarm sessions on a ring host.",
		Long: `Talks to a running alarm-ring-server.

  start               ring a new alarm and print its session ID
  signal ID SIGNAL    send dismiss, snooze, shake or cancel
  toggle ID           switch between the voice message and the tone
  watch ID            print the session's events until it ends`,
	}

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Ring a new alarm and print its session ID.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := notifyContext()
			defer stop()

			req := startRequest
			req.JSON = asJSON

			if cmd.Flags().Changed("voice") {
				req.Options.VoiceEnabled = &voiceEnabled
			}

			if cmd.Flags().Changed("haptic") {
				req.Options.HapticEnabled = &hapticEnabled
			}

			return client.Start(ctx, options(cmd), &req)
		},
	}

	signalCmd = &cobra.Command{
		Use:   "signal SESSION-ID SIGNAL",
		Short: "Send dismiss, snooze, shake or cancel to a session.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := notifyContext()
			defer stop()

			return client.Signal(ctx, options(cmd), args[0], args[1])
		},
	}

	toggleCmd = &cobra.Command{
		Use:   "toggle SESSION-ID",
		Short: "Switch a session between the voice message and the tone.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := notifyContext()
			defer stop()

			return client.Toggle(ctx, options(cmd), args[0])
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch SESSION-ID",
		Short: "Print a session's events until it ends.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := notifyContext()
			defer stop()

			return client.Watch(ctx, options(cmd), args[0], asJSON)
		},
	}
)

// notifyContext sets up graceful shutdown handling.
func notifyContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

func options(cmd *cobra.Command) *client.Options {
	return &client.Options{
		ConfigPath:    configPath,
		ServerAddress: serverAddress,
		Output:        cmd.OutOrStdout(),
	}
}

// Execute runs the alarm-ring-signal CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Connection flags are shared by every subcommand.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&serverAddress, "server", "s", "", "ring host address (overrides server_addr)")

	startCmd.Flags().StringVar(&startRequest.Params.AlarmID, "id", "", "alarm identifier (defaults to the session ID)")
	startCmd.Flags().StringVarP(&startRequest.Params.Label, "label", "l", "", "alarm label spoken in the wake message")
	startCmd.Flags().StringVarP(&startRequest.Params.VoiceMood, "mood", "m", "", "voice mood")
	startCmd.Flags().IntVar(&startRequest.Params.SnoozeCount, "snooze-count", 0, "times this alarm was already snoozed")
	startCmd.Flags().StringVar(&startRequest.Options.RecognitionLocale, "locale", "", "speech recognition locale")
	startCmd.Flags().BoolVar(&voiceEnabled, "voice", true, "speak the wake message")
	startCmd.Flags().BoolVar(&hapticEnabled, "haptic", true, "pulse the vibration motor")
	startCmd.Flags().BoolVarP(&startRequest.Watch, "watch", "w", false, "keep printing the session's events")
	startCmd.Flags().BoolVar(&asJSON, "json", false, "print watched events as JSON")

	watchCmd.Flags().BoolVar(&asJSON, "json", false, "print events as JSON")

	rootCmd.AddCommand(startCmd, signalCmd, toggleCmd, watchCmd)
}

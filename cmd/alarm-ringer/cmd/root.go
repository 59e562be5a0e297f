package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-clock/internal/config"
	"github.com/oshokin/alarm-clock/internal/service/ringer"
	"github.com/oshokin/alarm-clock/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// ringOptions collects the ring command flags.
	ringOptions ringer.Options

	// rootCmd represents the base command; it rings an alarm in the foreground.
	rootCmd = &cobra.Command{
		Use:   "alarm-ringer",
		Short: "Ring an alarm on this machine until it is dismissed or snoozed.",
		Long: `Rings an alarm in the foreground with a spoken wake message, a fallback tone,
vibration pulses and continuous speech recognition.

Say "stop" or "snooze", or type one of dismiss, snooze, shake, cancel or toggle
followed by Enter. The command prints every session event and exits once the
alarm is resolved; the outcome is printed last.`,
		Args: cobra.NoArgs,
		RunE: runRing,
	}

	// ringCmd is an explicit alias of the root behavior.
	ringCmd = &cobra.Command{
		Use:   "ring",
		Short: "Ring an alarm (default command).",
		Args:  cobra.NoArgs,
		RunE:  runRing,
	}
)

func runRing(cmd *cobra.Command, _ []string) error {
	// Setup graceful shutdown handling; an interrupt cancels the alarm.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	opts := ringOptions
	opts.ConfigPath = configPath
	opts.Input = cmd.InOrStdin()
	opts.Output = cmd.OutOrStdout()
	opts.Color = ringer.ColorEnabled(opts.Output)

	outcome, err := ringer.Run(ctx, &opts)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "outcome: method=%s snooze=%t\n", outcome.Method, outcome.Snooze)

	return nil
}

// Execute runs the alarm-ringer CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// The config flag is shared by every subcommand.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")

	// Ring flags apply to both the root command and its ring alias.
	for _, c := range []*cobra.Command{rootCmd, ringCmd} {
		c.Flags().StringVar(&ringOptions.AlarmID, "id", "", "alarm identifier (generated when empty)")
		c.Flags().StringVarP(&ringOptions.Label, "label", "l", "", "alarm label spoken in the wake message")
		c.Flags().StringVarP(&ringOptions.Mood, "mood", "m", "", "voice mood: gentle, motivational, drill-sergeant, ...")
		c.Flags().IntVar(&ringOptions.SnoozeCount, "snooze-count", 0, "times this alarm was already snoozed")
		c.Flags().BoolVar(&ringOptions.ShowTicks, "ticks", false, "print countdown ticks")
	}

	rootCmd.AddCommand(ringCmd, newVoicePackCmd(), newConfigCmd())
}

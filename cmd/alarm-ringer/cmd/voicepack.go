package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-clock/internal/config"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/service/voicepack"
)

func newVoicePackCmd() *cobra.Command {
	voicePackCmd := &cobra.Command{
		Use:   "voicepack",
		Short: "Manage pre-rendered voice clips.",
	}

	voicePackCmd.AddCommand(&cobra.Command{
		Use:   "install [manifest-url]",
		Short: "Download voice clips listed in a manifest.",
		Long: `Downloads the <mood>.wav clips listed in a voice pack manifest into the
voice_pack.dir directory, verifying SHA-512 checksums. Clips already up to date
are skipped. The manifest URL defaults to voice_pack.manifest_url.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			ctx = logger.WithName(ctx, "voicepack")

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			manifestURL := cfg.VoicePack.ManifestURL
			if len(args) > 0 {
				manifestURL = args[0]
			}

			result, err := voicepack.Install(ctx, voicepack.Options{
				ManifestURL: manifestURL,
				Dir:         cfg.VoicePack.Dir,
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "voice pack %s: %d installed, %d up to date\n",
				result.Version, len(result.Installed), len(result.Skipped))

			return nil
		},
	})

	voicePackCmd.AddCommand(&cobra.Command{
		Use:   "pack DIR VERSION",
		Short: "Write a manifest for the mood clips in a directory.",
		Long: `Checksums every <mood>.wav clip in DIR and writes ` + voicepack.ManifestFilename + ` next to
them. Upload the directory and point voice_pack.manifest_url at the manifest.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.WithName(cmd.Context(), "voicepack")

			manifest, err := voicepack.Pack(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "voice pack %s: %d clips\n", manifest.Version, len(manifest.Clips))

			return nil
		},
	})

	return voicePackCmd
}

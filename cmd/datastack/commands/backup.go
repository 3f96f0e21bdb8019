package commands

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newBackupCommand(flags *globalFlags, version string) *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the store",
		Long: `Write a consistent copy of the loaded store using VACUUM INTO.

The destination must not exist.`,
		Example: `  # Back up to a timestamped file in the current directory
  datastack backup

  # Back up to a chosen file
  datastack backup --out kennel-backup.sqlite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(flags, version)
			if err != nil {
				return err
			}
			defer a.close()

			if outFile == "" {
				outFile = fmt.Sprintf("%s-%s.sqlite", a.cfg.Store.Model, time.Now().UTC().Format("20060102T150405Z"))
			}

			log.Info().Str("out", outFile).Msg("Creating backup")

			if _, err := a.load(ctx); err != nil {
				return err
			}
			if err := a.container.Backup(ctx, outFile); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Backup written: %s\n", outFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "backup output file")

	return cmd
}

package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRestoreCommand(flags *globalFlags, version string) *cobra.Command {
	var (
		backupFile string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the store from a backup",
		Long: `Replace the store file with a backup and load it.

WARNING: the current store is replaced. A backup written by an
incompatible schema is wiped on load like any other store.`,
		Example: `  datastack restore --from kennel-backup.sqlite --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to replace the store without --force")
			}

			a, err := newApp(flags, version)
			if err != nil {
				return err
			}
			defer a.close()

			log.Info().Str("from", backupFile).Msg("Restoring from backup")

			if err := a.container.Restore(backupFile); err != nil {
				return err
			}

			desc, err := a.load(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Restored %s from %s\n", desc.Configuration.Location, backupFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&backupFile, "from", "", "backup file to restore from")
	cmd.Flags().BoolVar(&force, "force", false, "confirm replacing the store")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

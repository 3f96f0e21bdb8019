package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newWipeCommand(flags *globalFlags, version string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete the store file",
		Long: `Delete the store file of the configured model and its WAL companions.

WARNING: every stored object is lost. The store is recreated empty on the
next command that loads it.`,
		Example: `  datastack wipe --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to wipe without --force")
			}

			a, err := newApp(flags, version)
			if err != nil {
				return err
			}
			defer a.close()

			location := a.container.Configuration().Location
			log.Info().Str("location", location).Msg("Wiping store")

			if err := a.container.WipeStore(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wiped store: %s\n", location)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "confirm deleting the store")

	return cmd
}

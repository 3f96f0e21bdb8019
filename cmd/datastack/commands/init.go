package commands

import (
	"fmt"
	"os"

	"github.com/datastack/datastack/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newInitCommand(flags *globalFlags, version string) *cobra.Command {
	var (
		dataDir string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the data directory and store",
		Long: `Write a configuration file and create the store for the configured model.

An existing configuration file is kept unless --force is given.`,
		Example: `  # Initialize with defaults
  datastack init

  # Initialize in a custom directory
  datastack init --data-dir ./data --config ./data/datastack.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPathFor(flags)
			out := cmd.OutOrStdout()

			log.Info().
				Str("config", path).
				Str("data_dir", dataDir).
				Msg("Initializing datastack")

			_, statErr := os.Stat(path)
			if statErr == nil && !force {
				fmt.Fprintf(out, "✓ Config file already exists: %s\n", path)
			} else {
				cfg := config.Default()
				if dataDir != "" {
					cfg.DataDir = dataDir
				}
				if err := cfg.Validate(); err != nil {
					return err
				}
				if err := cfg.Save(path); err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Created config file: %s\n", path)
			}

			a, err := newApp(flags, version)
			if err != nil {
				return err
			}
			defer a.close()

			desc, err := a.load(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "✓ Store ready: %s (model %s)\n", desc.Configuration.Location, desc.Model)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory holding store files")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}

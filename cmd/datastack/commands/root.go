package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	verbose    bool
	jsonOutput bool
	inMemory   bool
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "datastack",
		Short: "datastack - local model store",
		Long: `datastack manages a local SQLite store for a data model.

A store is opened from the configured data directory, migrated to the
model's schema and, when it was written by an incompatible schema, wiped
and recreated once before giving up.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&flags.inMemory, "in-memory", false, "use an ephemeral in-memory store")

	rootCmd.AddCommand(newInitCommand(flags, version))
	rootCmd.AddCommand(newImportCommand(flags, version))
	rootCmd.AddCommand(newListCommand(flags, version))
	rootCmd.AddCommand(newStatusCommand(flags, version))
	rootCmd.AddCommand(newWipeCommand(flags, version))
	rootCmd.AddCommand(newBackupCommand(flags, version))
	rootCmd.AddCommand(newRestoreCommand(flags, version))

	return rootCmd
}

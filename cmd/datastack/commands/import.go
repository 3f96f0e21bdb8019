package commands

import (
	"fmt"
	"os"

	"github.com/datastack/datastack/pkg/config"
	"github.com/datastack/datastack/pkg/models/kennel"
	"github.com/datastack/datastack/pkg/stores"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// maxParallelDecodes bounds how many import files are read at once.
const maxParallelDecodes = 4

func newImportCommand(flags *globalFlags, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import documents into the store",
		Long: `Validate JSON or CUE documents against the model schema and save them.

Each file holds one person or a list of people. All files are validated
before anything is saved, and everything is saved in one transaction.`,
		Example: `  datastack import people.json
  datastack import alice.json bob.cue`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(flags, version)
			if err != nil {
				return err
			}
			defer a.close()

			sr := config.NewSchemaRegistry()
			if err := kennel.RegisterSchema(sr); err != nil {
				return err
			}

			decoded := make([][]kennel.Person, len(args))
			eg, egCtx := errgroup.WithContext(ctx)
			eg.SetLimit(maxParallelDecodes)
			for i, file := range args {
				eg.Go(func() error {
					data, err := os.ReadFile(file)
					if err != nil {
						return fmt.Errorf("failed to read %s: %w", file, err)
					}
					people, err := kennel.DecodeFile(egCtx, sr, file, data)
					if err != nil {
						return fmt.Errorf("%s: %w", file, err)
					}
					log.Debug().Str("file", file).Int("people", len(people)).Msg("Decoded document")
					decoded[i] = people
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				return err
			}

			var people []kennel.Person
			for _, batch := range decoded {
				people = append(people, batch...)
			}

			if _, err := a.load(ctx); err != nil {
				return err
			}
			if err := stores.Save(ctx, a.container, people); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d people from %d files\n", len(people), len(args))
			return nil
		},
	}

	return cmd
}

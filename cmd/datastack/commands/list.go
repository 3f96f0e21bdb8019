package commands

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/datastack/datastack/pkg/models/kennel"
	"github.com/datastack/datastack/pkg/stores"
	"github.com/spf13/cobra"
)

func newListCommand(flags *globalFlags, version string) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored people and their dogs",
		Example: `  datastack list
  datastack list --name alice --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			a, err := newApp(flags, version)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.load(ctx); err != nil {
				return err
			}

			var pred *stores.Predicate
			if name != "" {
				pred = kennel.ByName(name)
			}

			stored, err := stores.Read(ctx, a.container, kennel.PersonEntity, pred)
			if err != nil {
				return err
			}

			people := make([]kennel.Person, 0, len(stored))
			for _, p := range stored {
				person, err := p.Person()
				if err != nil {
					return err
				}
				people = append(people, person)
			}

			// Reads carry no ordering.
			slices.SortFunc(people, func(a, b kennel.Person) int { return cmp.Compare(a.ID, b.ID) })

			if flags.jsonOutput {
				return printJSON(out, people)
			}

			if len(people) == 0 {
				fmt.Fprintln(out, "No people stored")
				return nil
			}
			for _, p := range people {
				fmt.Fprintf(out, "%d\t%s\n", p.ID, p.Name)
				for _, d := range p.Dogs {
					if d.Chip != "" {
						fmt.Fprintf(out, "\t%d\t%s\tchip %s\n", d.ID, d.Name, d.Chip)
					} else {
						fmt.Fprintf(out, "\t%d\t%s\n", d.ID, d.Name)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "only list people with this name")

	return cmd
}

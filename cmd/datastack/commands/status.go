package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

type statusReport struct {
	Model         string `json:"model"`
	Location      string `json:"location"`
	Format        string `json:"format"`
	SchemaVersion uint   `json:"schema_version"`
	Attempts      int    `json:"attempts"`
	Recovered     bool   `json:"recovered"`
	ConfigFile    string `json:"config_file"`
}

func newStatusCommand(flags *globalFlags, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Load the store and report its state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(flags, version)
			if err != nil {
				return err
			}
			defer a.close()

			desc, err := a.load(ctx)
			if err != nil {
				return err
			}

			schemaVersion, _, err := a.container.SchemaVersion(ctx)
			if err != nil {
				return err
			}

			report := statusReport{
				Model:         desc.Model,
				Location:      desc.Configuration.Location,
				Format:        string(desc.Configuration.Format),
				SchemaVersion: schemaVersion,
				Attempts:      desc.Attempts,
				Recovered:     desc.Recovered,
				ConfigFile:    a.configPath,
			}

			out := cmd.OutOrStdout()
			if flags.jsonOutput {
				return printJSON(out, report)
			}

			fmt.Fprintf(out, "Model:          %s\n", report.Model)
			fmt.Fprintf(out, "Location:       %s\n", report.Location)
			fmt.Fprintf(out, "Format:         %s\n", report.Format)
			fmt.Fprintf(out, "Schema version: %d\n", report.SchemaVersion)
			fmt.Fprintf(out, "Attempts:       %d\n", report.Attempts)
			fmt.Fprintf(out, "Recovered:      %v\n", report.Recovered)
			return nil
		},
	}

	return cmd
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/kubeci-dev/ciprov/cmd/ciprov/handlers"
)

// Doctor returns the command for diagnosing the local environment.
//
// Optional flags:
//
//	--json: Output in JSON format
func Doctor(opts *options) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check required tools and list retained runs",
		Long: `Check required tools and list retained runs.

Reports whether gcloud, kubectl, terraform and ansible-playbook are on PATH,
their versions, and the run directories currently kept under --work-root.
Exits 1 when a required tool is missing.

Examples:
  ciprov doctor
  ciprov doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return handlers.Doctor(cmd.Context(), cfg, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

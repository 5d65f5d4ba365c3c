package commands

import (
	"github.com/spf13/cobra"

	"github.com/kubeci-dev/ciprov/cmd/ciprov/handlers"
)

// Prune returns the command that removes old run directories.
func Prune(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove run directories beyond --max-runs",
		Long: `Remove run directories beyond --max-runs.

The newest run directories are kept. A directory that cannot be removed is
reported and the others are still removed; the command then exits 1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return handlers.Prune(cmd.Context(), cfg)
		},
	}
}

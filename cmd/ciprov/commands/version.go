package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// buildInfo is stamped by main from linker flags.
var buildInfo = struct {
	version, commit, date string
}{"dev", "none", "unknown"}

// SetVersionInfo records the build metadata printed by the version command.
func SetVersionInfo(version, commit, date string) {
	buildInfo.version, buildInfo.commit, buildInfo.date = version, commit, date
}

// Version returns the version command.
func Version() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, buildInfo.version)
				return
			}
			fmt.Fprintf(out, "ciprov %s\n  commit: %s\n  built:  %s\n  go:     %s %s/%s\n",
				buildInfo.version, buildInfo.commit, buildInfo.date,
				runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version")
	return cmd
}

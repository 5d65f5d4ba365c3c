// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
//
// Every flag is bound into a viper instance with the CIPROV_ environment
// prefix, so --max-runs can also be set as CIPROV_MAX_RUNS or as max-runs in
// the file passed to --config.
package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kubeci-dev/ciprov/internal/config"
)

// options carries the state shared by all subcommands.
type options struct {
	v          *viper.Viper
	configFile string
}

// load merges flags, environment and the optional config file.
func (o *options) load() (*config.Config, error) {
	return config.Load(o.v, o.configFile)
}

// Root returns the root command for the ciprov CLI.
func Root() *cobra.Command {
	opts := &options{v: config.NewViper()}
	d := config.Default()

	cmd := &cobra.Command{
		Use:   "ciprov",
		Short: "Provision Jenkins on Google Kubernetes Engine",
		Long: `ciprov creates the GKE cluster, persistent disk, volume claim and role
binding a Jenkins installation needs, skipping whatever already exists, and
then deploys Jenkins with ansible-playbook.

Each invocation works in its own run directory, so runs never share
terraform state or kube contexts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.v.BindPFlags(cmd.Flags())
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "Path to a YAML config file")
	pf.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	pf.String("log-format", d.LogFormat, "Log format (text, json; default text on a terminal)")
	pf.String("source-dir", d.SourceDir, "Directory containing the terraform and ansible sources")
	pf.String("work-root", d.WorkRoot, "Directory holding one subdirectory per run")
	pf.Int("max-runs", d.MaxRuns, "Number of run directories to keep")

	cmd.AddCommand(Run(opts))
	cmd.AddCommand(Prune(opts))
	cmd.AddCommand(Doctor(opts))
	cmd.AddCommand(Version())

	return cmd
}

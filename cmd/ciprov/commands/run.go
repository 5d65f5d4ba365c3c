package commands

import (
	"github.com/spf13/cobra"

	"github.com/kubeci-dev/ciprov/cmd/ciprov/handlers"
	"github.com/kubeci-dev/ciprov/internal/config"
)

// Run returns the command that provisions and deploys Jenkins.
//
// Optional flags:
//
//	--method: manifest (default) or chart
//	--vars-file: variable file inside the terraform directory
//	--metrics-file: write Prometheus samples for this run
func Run(opts *options) *cobra.Command {
	d := config.Default()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Provision missing resources and deploy Jenkins",
		Long: `Provision missing resources and deploy Jenkins.

The run proceeds in a fixed order: staging, variables, tool checks, the GKE
cluster, the kube context (bound and verified), the disk, the volume claim,
the role binding, the Ansible deployment and finally pruning of old run
directories. The first failure stops the run with exit status 1.

Examples:
  # Deploy with plain manifests
  ciprov run

  # Deploy with the Helm chart playbook
  ciprov run --method chart

  # Same, configured through the environment
  CIPROV_METHOD=chart ciprov run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return handlers.Run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.String("method", d.Method, "Deployment method: manifest or chart")
	f.String("terraform-dir", d.TerraformDir, "Terraform directory, relative to --source-dir")
	f.String("ansible-dir", d.AnsibleDir, "Ansible directory, relative to --source-dir")
	f.String("vars-file", d.VarsFile, "Variable file, relative to the terraform directory")
	f.String("context-prefix", d.ContextPrefix, "Prefix of the kube context name written by gcloud")
	f.String("disk-target", d.DiskTarget, "Terraform address of the disk")
	f.String("cluster-target", d.ClusterTarget, "Terraform address of the cluster")
	f.String("disk-name", d.DiskName, "Disk name used when the variable file has no disk_name")
	f.String("pvc-manifest", d.PVCManifest, "PVC manifest, relative to the ansible directory")
	f.String("role-binding-manifest", d.RoleBindingManifest, "Role binding manifest, relative to the ansible directory")
	f.String("manifest-playbook", d.ManifestPlaybook, "Playbook for the manifest method")
	f.String("chart-playbook", d.ChartPlaybook, "Playbook for the chart method")
	f.Bool("clear-plugin-cache", d.ClearPluginCache, "Empty the shared terraform plugin cache before running")
	f.String("plugin-cache-dir", d.PluginCacheDir, "Terraform plugin cache directory")
	f.Bool("skip-prerequisites", d.SkipPrerequisites, "Do not check for required tools")
	f.Bool("install-missing-tools", d.InstallMissingTools, "Install ansible with pip when it is missing")
	f.String("metrics-file", d.MetricsFile, "Write run metrics in Prometheus text format to this file")
	f.String("archive-bucket", d.ArchiveBucket, "Upload a record of the run to this bucket (keys from CIPROV_ARCHIVE_ACCESS_KEY/SECRET_KEY)")
	f.String("archive-endpoint", d.ArchiveEndpoint, "S3-compatible endpoint of the archive bucket")
	f.String("archive-prefix", d.ArchivePrefix, "Object key prefix for run records")

	return cmd
}

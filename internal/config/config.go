// Package config defines the run configuration shared by every command.
//
// Values come from command-line flags, CIPROV_* environment variables and an
// optional YAML file, merged by viper (see Load). Defaults reproduce the
// layout of the Jenkins-on-GKE source tree: terraform/ and ansible/ next to
// each other, with the variable file inside terraform/.
package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/kubeci-dev/ciprov/internal/util/naming"
)

// Deployment methods understood by the Ansible hand-off.
const (
	MethodManifest = "manifest"
	MethodChart    = "chart"
)

// ErrInvalidMethod is returned for a method other than manifest or chart.
var ErrInvalidMethod = errors.New("invalid deployment method")

// Config holds every setting a run needs.
type Config struct {
	// Method selects the Ansible playbook: manifest or chart.
	Method string `mapstructure:"method"`

	// SourceDir contains TerraformDir and AnsibleDir.
	SourceDir    string `mapstructure:"source-dir"`
	TerraformDir string `mapstructure:"terraform-dir"`
	AnsibleDir   string `mapstructure:"ansible-dir"`

	// VarsFile is relative to TerraformDir.
	VarsFile string `mapstructure:"vars-file"`

	// WorkRoot holds one run directory per invocation.
	WorkRoot string `mapstructure:"work-root"`
	MaxRuns  int    `mapstructure:"max-runs"`

	ContextPrefix string `mapstructure:"context-prefix"`

	// Terraform resource addresses applied with -target.
	DiskTarget    string `mapstructure:"disk-target"`
	ClusterTarget string `mapstructure:"cluster-target"`

	// DiskName is used when the variable file declares no disk_name.
	DiskName string `mapstructure:"disk-name"`

	// Manifests and playbooks, relative to AnsibleDir.
	PVCManifest         string `mapstructure:"pvc-manifest"`
	RoleBindingManifest string `mapstructure:"role-binding-manifest"`
	ManifestPlaybook    string `mapstructure:"manifest-playbook"`
	ChartPlaybook       string `mapstructure:"chart-playbook"`

	ClearPluginCache bool   `mapstructure:"clear-plugin-cache"`
	PluginCacheDir   string `mapstructure:"plugin-cache-dir"`

	SkipPrerequisites   bool `mapstructure:"skip-prerequisites"`
	InstallMissingTools bool `mapstructure:"install-missing-tools"`

	MetricsFile string `mapstructure:"metrics-file"`

	// ArchiveBucket, when set, receives a record of every run through the
	// S3-compatible API at ArchiveEndpoint.
	ArchiveBucket    string `mapstructure:"archive-bucket"`
	ArchiveEndpoint  string `mapstructure:"archive-endpoint"`
	ArchiveRegion    string `mapstructure:"archive-region"`
	ArchivePrefix    string `mapstructure:"archive-prefix"`
	ArchiveAccessKey string `mapstructure:"archive-access-key"`
	ArchiveSecretKey string `mapstructure:"archive-secret-key"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Method:              MethodManifest,
		SourceDir:           ".",
		TerraformDir:        "terraform",
		AnsibleDir:          "ansible",
		VarsFile:            "variables.tfvars",
		WorkRoot:            filepath.Join(os.TempDir(), "ciprov-runs"),
		MaxRuns:             5,
		ContextPrefix:       naming.DefaultContextPrefix,
		DiskTarget:          naming.TerraformAddress("google_compute_disk", "jenkins_disk"),
		ClusterTarget:       naming.TerraformAddress("google_container_cluster", "primary"),
		DiskName:            "jenkins-disk",
		PVCManifest:         "jenkins_pvc.yaml",
		RoleBindingManifest: "jenkins-role-binding.yaml",
		ManifestPlaybook:    "deploy_jenkins.yml",
		ChartPlaybook:       "deploy_jenkins_helm.yml",
		PluginCacheDir:      defaultPluginCacheDir(),
		InstallMissingTools: true,
		ArchiveEndpoint:     "https://storage.googleapis.com",
		ArchiveRegion:       "auto",
		ArchivePrefix:       "ciprov",
		LogLevel:            "info",
	}
}

func defaultPluginCacheDir() string {
	if dir := os.Getenv("TF_PLUGIN_CACHE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".terraform.d", "plugin-cache")
}

// Validate checks the configuration for values no run could succeed with.
func (c *Config) Validate() error {
	if _, err := c.Playbook(); err != nil {
		return err
	}
	if c.MaxRuns < 1 {
		return errors.Newf("max-runs must be at least 1, got %d", c.MaxRuns)
	}
	if c.WorkRoot == "" {
		return errors.New("work-root must not be empty")
	}
	if c.TerraformDir == "" || c.AnsibleDir == "" {
		return errors.New("terraform-dir and ansible-dir must not be empty")
	}
	if c.VarsFile == "" {
		return errors.New("vars-file must not be empty")
	}
	if c.ContextPrefix == "" {
		return errors.New("context-prefix must not be empty")
	}
	if c.DiskTarget == "" || c.ClusterTarget == "" {
		return errors.New("disk-target and cluster-target must not be empty")
	}
	if c.ArchiveBucket != "" && (c.ArchiveAccessKey == "" || c.ArchiveSecretKey == "") {
		return errors.New("archive-bucket requires archive-access-key and archive-secret-key")
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return errors.Newf("unknown log-format %q (want text or json)", c.LogFormat)
	}
	return nil
}

// Playbook returns the playbook file for the configured method.
func (c *Config) Playbook() (string, error) {
	switch c.Method {
	case MethodManifest:
		return c.ManifestPlaybook, nil
	case MethodChart:
		return c.ChartPlaybook, nil
	default:
		return "", errors.Wrapf(ErrInvalidMethod, "%q (want %s or %s)", c.Method, MethodManifest, MethodChart)
	}
}

// TerraformSource returns the terraform source directory on disk.
func (c *Config) TerraformSource() string {
	return resolve(c.SourceDir, c.TerraformDir)
}

// AnsibleSource returns the Ansible source directory on disk.
func (c *Config) AnsibleSource() string {
	return resolve(c.SourceDir, c.AnsibleDir)
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CIPROV_METHOD.
const EnvPrefix = "CIPROV"

// Names of the staged source trees inside every run directory.
const (
	SourceTerraform = "terraform"
	SourceAnsible   = "ansible"
)

// SetDefaults registers every default with v so that keys without a bound
// flag still resolve from the environment or the config file.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("method", d.Method)
	v.SetDefault("source-dir", d.SourceDir)
	v.SetDefault("terraform-dir", d.TerraformDir)
	v.SetDefault("ansible-dir", d.AnsibleDir)
	v.SetDefault("vars-file", d.VarsFile)
	v.SetDefault("work-root", d.WorkRoot)
	v.SetDefault("max-runs", d.MaxRuns)
	v.SetDefault("context-prefix", d.ContextPrefix)
	v.SetDefault("disk-target", d.DiskTarget)
	v.SetDefault("cluster-target", d.ClusterTarget)
	v.SetDefault("disk-name", d.DiskName)
	v.SetDefault("pvc-manifest", d.PVCManifest)
	v.SetDefault("role-binding-manifest", d.RoleBindingManifest)
	v.SetDefault("manifest-playbook", d.ManifestPlaybook)
	v.SetDefault("chart-playbook", d.ChartPlaybook)
	v.SetDefault("clear-plugin-cache", d.ClearPluginCache)
	v.SetDefault("plugin-cache-dir", d.PluginCacheDir)
	v.SetDefault("skip-prerequisites", d.SkipPrerequisites)
	v.SetDefault("install-missing-tools", d.InstallMissingTools)
	v.SetDefault("metrics-file", d.MetricsFile)
	v.SetDefault("archive-bucket", d.ArchiveBucket)
	v.SetDefault("archive-endpoint", d.ArchiveEndpoint)
	v.SetDefault("archive-region", d.ArchiveRegion)
	v.SetDefault("archive-prefix", d.ArchivePrefix)
	v.SetDefault("archive-access-key", d.ArchiveAccessKey)
	v.SetDefault("archive-secret-key", d.ArchiveSecretKey)
	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
}

// NewViper returns a viper instance wired for CIPROV_* overrides.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads an optional config file and decodes v into a validated Config.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configFile)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

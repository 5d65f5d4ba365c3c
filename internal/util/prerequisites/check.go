// Package prerequisites checks for the CLIs a run shells out to and, where
// possible, installs missing ones.
package prerequisites

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/kubeci-dev/ciprov/internal/gateway"
)

// Tool represents a client tool that may be required.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string

	// InstallURL provides a URL for installation instructions.
	InstallURL string

	// Install, when set, is run to install the tool if it is missing.
	Install []gateway.Command

	// VersionArgs are passed to print the version. Defaults to --version.
	VersionArgs []string
}

// DefaultTools returns the tools every run needs.
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:        "gcloud",
			Required:    true,
			Description: "Required for cluster credentials and resource listings",
			InstallURL:  "https://cloud.google.com/sdk/docs/install",
			VersionArgs: []string{"version", "--format=value(version)"},
		},
		{
			Name:        "kubectl",
			Required:    true,
			Description: "Required for kube context binding and applying manifests",
			InstallURL:  "https://kubernetes.io/docs/tasks/tools/",
			VersionArgs: []string{"version", "--client"},
		},
		{
			Name:        "terraform",
			Required:    true,
			Description: "Required for creating the disk and the cluster",
			InstallURL:  "https://developer.hashicorp.com/terraform/install",
			VersionArgs: []string{"version"},
		},
		{
			Name:        "ansible-playbook",
			Required:    true,
			Description: "Required for deploying Jenkins onto the cluster",
			InstallURL:  "https://docs.ansible.com/ansible/latest/installation_guide/",
			Install: []gateway.Command{
				{Name: "pip3", Args: []string{"install", "--user", "ansible"}},
				{Name: "pip3", Args: []string{"install", "--user", "kubernetes"}},
			},
		},
	}
}

// UserBinDir is where pip --user installs executables.
func UserBinDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "bin")
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool      Tool
	Found     bool
	Installed bool
	Path      string
	Version   string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.InstallURL))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return errors.Newf("missing required tools: %s", strings.Join(missing, ", "))
}

// Checker looks tools up and optionally installs missing ones.
type Checker struct {
	Runner gateway.Runner

	// ExtraPath is searched in addition to PATH.
	ExtraPath []string

	lookPath func(string) (string, error)
}

// NewChecker creates a checker probing versions through runner.
func NewChecker(runner gateway.Runner, extraPath ...string) *Checker {
	return &Checker{Runner: runner, ExtraPath: extraPath, lookPath: exec.LookPath}
}

// Check verifies that the specified tools are available.
func (c *Checker) Check(ctx context.Context, tools []Tool) *CheckResults {
	results := &CheckResults{}

	for _, tool := range tools {
		result := CheckResult{Tool: tool}

		if path, ok := c.find(tool.Name); ok {
			result.Found = true
			result.Path = path
			result.Version = c.version(ctx, path, tool)
		} else {
			results.Missing = append(results.Missing, tool)
		}

		results.Results = append(results.Results, result)
	}

	return results
}

// Ensure checks tools and runs the install commands of missing ones, then
// checks again. Tools that are still missing are reported by the result.
func (c *Checker) Ensure(ctx context.Context, tools []Tool) *CheckResults {
	first := c.Check(ctx, tools)
	if len(first.Missing) == 0 {
		return first
	}

	installed := map[string]bool{}
	for _, tool := range first.Missing {
		if len(tool.Install) == 0 {
			continue
		}
		ok := true
		for _, cmd := range tool.Install {
			if _, err := c.Runner.Run(ctx, cmd); err != nil {
				ok = false
				break
			}
		}
		installed[tool.Name] = ok
	}

	second := c.Check(ctx, tools)
	for i := range second.Results {
		r := &second.Results[i]
		r.Installed = r.Found && installed[r.Tool.Name]
	}
	return second
}

func (c *Checker) find(name string) (string, bool) {
	if path, err := c.lookPath(name); err == nil {
		return path, true
	}
	for _, dir := range c.ExtraPath {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// version attempts to get the version of a tool.
// Returns empty string if version cannot be determined.
func (c *Checker) version(ctx context.Context, path string, tool Tool) string {
	args := tool.VersionArgs
	if len(args) == 0 {
		args = []string{"--version"}
	}
	res, err := c.Runner.Run(ctx, gateway.Command{Name: path, Args: args})
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(res.Stdout), "\n")
	return strings.TrimSpace(line)
}

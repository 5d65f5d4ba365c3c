package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/kubeci-dev/ciprov/internal/config"
	"github.com/kubeci-dev/ciprov/internal/gateway"
	"github.com/kubeci-dev/ciprov/internal/util/prerequisites"
	"github.com/kubeci-dev/ciprov/internal/workspace"
)

// checkTools looks up the required tools. Replaced in tests.
var checkTools = func(ctx context.Context, runner gateway.Runner) *prerequisites.CheckResults {
	return prerequisites.NewChecker(runner, prerequisites.UserBinDir()).Check(ctx, prerequisites.DefaultTools())
}

// DoctorStatus is the environment report.
type DoctorStatus struct {
	Tools   []ToolStatus `json:"tools"`
	WorkDir string       `json:"workRoot"`
	Runs    []string     `json:"runs"`
	MaxRuns int          `json:"maxRuns"`
}

// ToolStatus reports one required tool.
type ToolStatus struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Found    bool   `json:"found"`
	Path     string `json:"path,omitempty"`
	Version  string `json:"version,omitempty"`
	Install  string `json:"install,omitempty"`
}

// Doctor reports tool availability and retained runs. It fails when a
// required tool is missing.
func Doctor(ctx context.Context, cfg *config.Config, jsonOutput bool) error {
	log := newLogger(logOutput, cfg.LogLevel, cfg.LogFormat)

	results := checkTools(ctx, newRunner())

	runs, err := workspace.NewManager(cfg.WorkRoot, nil, log).List()
	if err != nil {
		return err
	}

	status := &DoctorStatus{WorkDir: cfg.WorkRoot, Runs: runs, MaxRuns: cfg.MaxRuns}
	for _, r := range results.Results {
		status.Tools = append(status.Tools, ToolStatus{
			Name:     r.Tool.Name,
			Required: r.Tool.Required,
			Found:    r.Found,
			Path:     r.Path,
			Version:  r.Version,
			Install:  r.Tool.InstallURL,
		})
	}

	if jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal status")
		}
		fmt.Fprintln(output, string(data))
	} else {
		fmt.Fprint(output, renderDoctor(status))
	}

	return results.Error()
}

func renderDoctor(status *DoctorStatus) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  ciprov doctor"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("═", 30)))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("  Tools"))
	b.WriteString("\n")
	for _, t := range status.Tools {
		if t.Found {
			fmt.Fprintf(&b, "    %s %-18s %s\n", createdStyle.Render("✓"), t.Name, dimStyle.Render(t.Version))
			continue
		}
		fmt.Fprintf(&b, "    %s %-18s %s\n", failedStyle.Render("✗"), t.Name, dimStyle.Render("see "+t.Install))
	}

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(fmt.Sprintf("  Runs (%d of %d kept)", len(status.Runs), status.MaxRuns)))
	b.WriteString("\n")
	if len(status.Runs) == 0 {
		b.WriteString(dimStyle.Render("    none under " + status.WorkDir))
		b.WriteString("\n")
	}
	for _, r := range status.Runs {
		fmt.Fprintf(&b, "    %s\n", r)
	}

	return b.String()
}

package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kubeci-dev/ciprov/internal/orchestration"
	"github.com/kubeci-dev/ciprov/internal/reconcile"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	createdStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	existingStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	failedStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorYellow)
)

// renderRunSummary produces a lipgloss-styled run summary.
func renderRunSummary(report *orchestration.Report, runErr error) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  ciprov run " + report.RunID))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("═", 30)))
	b.WriteString("\n")

	if report.RunDir != "" {
		fmt.Fprintf(&b, "    Directory: %s\n", report.RunDir)
	}
	fmt.Fprintf(&b, "    Method:    %s\n", report.Method)
	fmt.Fprintf(&b, "    Duration:  %s\n", report.Duration.Round(time.Millisecond))

	if len(report.Results) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("  Resources"))
		b.WriteString("\n")
		for _, res := range report.Results {
			fmt.Fprintf(&b, "    %-20s %-28s %s\n", res.Kind, res.Name, renderOutcome(res.Outcome))
		}
	}

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("  Deployment"))
	b.WriteString("\n")
	switch {
	case report.Deployed:
		b.WriteString("    " + createdStyle.Render("deployed") + "\n")
	case runErr != nil:
		b.WriteString("    " + failedStyle.Render("not deployed") + "\n")
	}

	if n := len(report.Pruned.Removed); n > 0 || len(report.Pruned.Failed) > 0 {
		fmt.Fprintf(&b, "    Pruned %d old run(s)", n)
		if f := len(report.Pruned.Failed); f > 0 {
			b.WriteString(", " + warningStyle.Render(fmt.Sprintf("%d could not be removed", f)))
		}
		b.WriteString("\n")
	}

	if runErr != nil {
		b.WriteString("\n")
		b.WriteString(failedStyle.Render("  Error: " + runErr.Error()))
		b.WriteString("\n")
	}

	return b.String()
}

func renderOutcome(o reconcile.Outcome) string {
	switch o {
	case reconcile.OutcomeCreated:
		return createdStyle.Render("created")
	case reconcile.OutcomeFailed:
		return failedStyle.Render("failed")
	default:
		return existingStyle.Render("already exists")
	}
}

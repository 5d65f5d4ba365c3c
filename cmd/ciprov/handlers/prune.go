package handlers

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/kubeci-dev/ciprov/internal/config"
	"github.com/kubeci-dev/ciprov/internal/workspace"
)

// Prune removes run directories beyond cfg.MaxRuns.
func Prune(_ context.Context, cfg *config.Config) error {
	log := newLogger(logOutput, cfg.LogLevel, cfg.LogFormat)
	manager := workspace.NewManager(cfg.WorkRoot, nil, log)

	result, err := manager.Prune(cfg.MaxRuns)

	fmt.Fprintf(output, "Kept %d run(s) under %s\n", len(result.Kept), cfg.WorkRoot)
	for _, name := range result.Removed {
		fmt.Fprintf(output, "  removed %s\n", name)
	}
	for _, name := range result.Failed {
		fmt.Fprintf(output, "  %s\n", failedStyle.Render("could not remove "+name))
	}

	if err != nil {
		return errors.Wrap(err, "prune failed")
	}
	return nil
}

// Package handlers implements the command logic behind the cobra commands.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"

	"github.com/kubeci-dev/ciprov/internal/config"
	"github.com/kubeci-dev/ciprov/internal/gateway"
	"github.com/kubeci-dev/ciprov/internal/metrics"
	"github.com/kubeci-dev/ciprov/internal/orchestration"
	"github.com/kubeci-dev/ciprov/internal/provisioning"
	"github.com/kubeci-dev/ciprov/internal/util/prerequisites"
)

// Reconciler interface for testing - matches orchestration.Reconciler.
type Reconciler interface {
	Reconcile(ctx context.Context) (*orchestration.Report, error)
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// newRunner creates the process runner used for every external command.
	// Tools installed with pip --user are found in ~/.local/bin.
	newRunner = func() gateway.Runner {
		r := gateway.NewExecRunner()
		if dir := prerequisites.UserBinDir(); dir != "" {
			r.ExtraPath = []string{dir}
		}
		return r
	}

	// newReconciler creates the provisioning reconciler.
	newReconciler = func(cfg *config.Config, runner gateway.Runner, obs provisioning.Observer, log logr.Logger, rec *metrics.Recorder) Reconciler {
		return orchestration.NewReconciler(cfg, runner, obs, log, rec)
	}

	// logOutput receives structured logs.
	logOutput io.Writer = os.Stderr

	// output receives human-readable summaries.
	output io.Writer = os.Stdout
)

// Run provisions missing resources and deploys Jenkins.
//
// The summary is printed whether or not the run succeeded. A metrics file
// and the archived run record, when configured, are written on both paths
// as well.
func Run(ctx context.Context, cfg *config.Config) error {
	log := newLogger(logOutput, cfg.LogLevel, cfg.LogFormat)
	observer := provisioning.NewLogObserver(log)
	rec := metrics.NewRecorder()

	log.Info("starting run", "method", cfg.Method, "workRoot", cfg.WorkRoot)

	report, err := newReconciler(cfg, newRunner(), observer, log, rec).Reconcile(ctx)

	if report != nil {
		fmt.Fprint(output, renderRunSummary(report, err))
	}

	if cfg.MetricsFile != "" {
		if werr := rec.WriteFile(cfg.MetricsFile); werr != nil {
			log.Error(werr, "failed to write metrics")
		}
	}

	archiveRun(ctx, cfg, log, report, err)

	if err != nil {
		return errors.Wrap(err, "run failed")
	}
	return nil
}

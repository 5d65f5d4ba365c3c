package orchestration

import (
	"context"
	"os/exec"
	"time"

	"github.com/go-logr/logr"

	"github.com/kubeci-dev/ciprov/internal/config"
	"github.com/kubeci-dev/ciprov/internal/deploy"
	"github.com/kubeci-dev/ciprov/internal/gateway"
	"github.com/kubeci-dev/ciprov/internal/infra"
	"github.com/kubeci-dev/ciprov/internal/metrics"
	"github.com/kubeci-dev/ciprov/internal/oracle"
	"github.com/kubeci-dev/ciprov/internal/provisioning"
	"github.com/kubeci-dev/ciprov/internal/reconcile"
	"github.com/kubeci-dev/ciprov/internal/util/prerequisites"
	"github.com/kubeci-dev/ciprov/internal/workspace"
)

// Report summarizes one run.
type Report struct {
	RunID    string
	RunDir   string
	Method   deploy.Method
	Results  []reconcile.Result
	Deployed bool
	Pruned   workspace.PruneResult
	Duration time.Duration
}

// Created returns the resources this run created.
func (r *Report) Created() []reconcile.Result {
	var out []reconcile.Result
	for _, res := range r.Results {
		if res.Outcome == reconcile.OutcomeCreated {
			out = append(out, res)
		}
	}
	return out
}

// Reconciler orchestrates the provisioning workflow.
type Reconciler struct {
	config   *config.Config
	runner   gateway.Runner
	observer provisioning.Observer
	logger   logr.Logger
	metrics  *metrics.Recorder

	// Checker and Manager are exported so callers can adjust lookup paths
	// and staging behaviour before Reconcile.
	Checker *prerequisites.Checker
	Manager *workspace.Manager

	// Python is passed to the Ansible inventory as the interpreter.
	Python string

	// Per-run state, populated by the phases.
	oracle    *oracle.Oracle
	terraform *infra.Terraform
	kubectl   *infra.Kubectl
	engine    *reconcile.Engine
	report    *Report
}

// NewReconciler creates a reconciler for cfg. External commands go through
// runner; rec may be nil.
func NewReconciler(
	cfg *config.Config,
	runner gateway.Runner,
	observer provisioning.Observer,
	logger logr.Logger,
	rec *metrics.Recorder,
) *Reconciler {
	manager := workspace.NewManager(cfg.WorkRoot, []workspace.Source{
		{Name: config.SourceTerraform, Path: cfg.TerraformSource()},
		{Name: config.SourceAnsible, Path: cfg.AnsibleSource()},
	}, logger)
	manager.PluginCacheDir = cfg.PluginCacheDir
	manager.ClearPluginCache = cfg.ClearPluginCache

	return &Reconciler{
		config:   cfg,
		runner:   runner,
		observer: observer,
		logger:   logger,
		metrics:  rec,
		Checker:  prerequisites.NewChecker(runner, prerequisites.UserBinDir()),
		Manager:  manager,
		Python:   findPython(),
	}
}

func findPython() string {
	path, err := exec.LookPath("python3")
	if err != nil {
		return ""
	}
	return path
}

// Phases returns the ordered provisioning phases.
func (r *Reconciler) Phases() []provisioning.Phase {
	return []provisioning.Phase{
		provisioning.NewPhase("stage", r.stage),
		provisioning.NewPhase("variables", r.readVariables),
		provisioning.NewPhase("prerequisites", r.checkPrerequisites),
		provisioning.NewPhase("project", r.bindProject),
		provisioning.NewPhase("cluster", r.reconcileCluster),
		provisioning.NewPhase("kube-context", r.bindContext),
		provisioning.NewPhase("disk", r.reconcileDisk),
		provisioning.NewPhase("pvc", r.reconcilePVC),
		provisioning.NewPhase("role-binding", r.reconcileRoleBinding),
		provisioning.NewPhase("deploy", r.deploy),
		provisioning.NewPhase("prune", r.prune),
	}
}

// Reconcile runs every phase in order and stops at the first failure.
// The returned report is populated as far as the run got, also on error.
func (r *Reconciler) Reconcile(ctx context.Context) (*Report, error) {
	start := time.Now()
	r.report = &Report{Method: deploy.Method(r.config.Method)}

	pCtx := provisioning.NewContext(ctx, r.config, r.observer, r.metrics)
	err := provisioning.RunPhases(pCtx, r.Phases())

	if r.engine != nil {
		r.report.Results = r.engine.Results()
	}
	r.report.Duration = time.Since(start)
	r.metrics.Finish(time.Now(), err == nil)
	return r.report, err
}

package infra

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/kubeci-dev/ciprov/internal/gateway"
	"github.com/kubeci-dev/ciprov/internal/workspace"
)

// Kubectl applies manifests against the run-scoped kubeconfig.
type Kubectl struct {
	Runner gateway.Runner
	Run    *workspace.RunContext
}

// NewKubectl creates a kubectl driver for run.
func NewKubectl(runner gateway.Runner, run *workspace.RunContext) *Kubectl {
	return &Kubectl{Runner: runner, Run: run}
}

// Apply applies the manifest at path.
func (k *Kubectl) Apply(ctx context.Context, path string) error {
	// #nosec G204 - path is a staged manifest inside the run directory
	_, err := k.Runner.Run(ctx, gateway.Command{
		Name: "kubectl",
		Args: []string{"apply", "-f", path, "--kubeconfig", k.Run.KubeconfigPath},
		Env:  k.Run.Env,
	})
	if err != nil {
		return errors.Wrapf(err, "kubectl apply failed for %s", path)
	}
	return nil
}

// ApplyFunc returns a creation action applying path.
func (k *Kubectl) ApplyFunc(path string) func(context.Context) error {
	return func(ctx context.Context) error {
		return k.Apply(ctx, path)
	}
}

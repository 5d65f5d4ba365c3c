// Package kubecontext binds the cluster access context for a run.
//
// Credentials fetched by gcloud land in the user's shared kubeconfig. The
// binder copies that configuration verbatim into the run-scoped kubeconfig
// and activates the expected context there, so concurrent or successive runs
// never switch each other's active cluster. Every cluster-scoped command
// afterwards passes --kubeconfig explicitly.
package kubecontext

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/kubeci-dev/ciprov/internal/gateway"
	"github.com/kubeci-dev/ciprov/internal/provisioning"
	"github.com/kubeci-dev/ciprov/internal/util/naming"
	"github.com/kubeci-dev/ciprov/internal/workspace"
)

// ErrContextMismatch is returned when the active context differs from the
// expected one after binding.
var ErrContextMismatch = errors.New("active kube context does not match the expected cluster")

// Target identifies the cluster to bind.
type Target struct {
	Project string
	Zone    string
	Cluster string
}

// Binder fetches credentials and activates the matching context.
type Binder struct {
	Runner   gateway.Runner
	Run      *workspace.RunContext
	Prefix   string
	Observer provisioning.Observer
}

// NewBinder creates a binder writing to run's kubeconfig.
func NewBinder(runner gateway.Runner, run *workspace.RunContext, prefix string, observer provisioning.Observer) *Binder {
	if prefix == "" {
		prefix = naming.DefaultContextPrefix
	}
	return &Binder{Runner: runner, Run: run, Prefix: prefix, Observer: observer}
}

// ContextName returns the context name expected for target.
func (b *Binder) ContextName(t Target) string {
	return naming.KubeContext(b.Prefix, t.Project, t.Zone, t.Cluster)
}

// Bind fetches credentials for the cluster, persists the raw configuration
// into the run kubeconfig and activates the expected context in it.
func (b *Binder) Bind(ctx context.Context, t Target) error {
	name := b.ContextName(t)

	if _, err := b.run(ctx, "gcloud", "container", "clusters", "get-credentials", t.Cluster,
		"--zone", t.Zone, "--project", t.Project); err != nil {
		return errors.Wrapf(err, "failed to fetch credentials for cluster %s", t.Cluster)
	}

	raw, err := b.run(ctx, "kubectl", "config", "view", "--raw")
	if err != nil {
		return errors.Wrap(err, "failed to read kubeconfig")
	}

	cfg, err := clientcmd.Load(raw)
	if err != nil {
		return errors.Wrap(err, "fetched kubeconfig is not valid")
	}
	if _, ok := cfg.Contexts[name]; !ok {
		provisioning.LogWarning(b.Observer, "kube-context", "fetched kubeconfig has no context "+name)
	}

	if err := os.WriteFile(b.Run.KubeconfigPath, raw, 0o600); err != nil {
		return errors.Wrapf(err, "failed to write run kubeconfig %s", b.Run.KubeconfigPath)
	}

	if _, err := b.run(ctx, "kubectl", "config", "use-context", name, "--kubeconfig", b.Run.KubeconfigPath); err != nil {
		return errors.Wrapf(err, "failed to activate context %s", name)
	}

	b.Observer.Printf("Bound kube context %s in %s", name, b.Run.KubeconfigPath)
	return nil
}

// Verify reads back the active context from the run kubeconfig and compares
// it byte-for-byte with the expected name. A mismatch or a failed read is
// logged as a warning and reported as false.
func (b *Binder) Verify(ctx context.Context, t Target) bool {
	want := b.ContextName(t)

	out, err := b.run(ctx, "kubectl", "config", "current-context", "--kubeconfig", b.Run.KubeconfigPath)
	if err != nil {
		provisioning.LogWarning(b.Observer, "kube-context", "failed to read current context: "+err.Error())
		return false
	}

	got := strings.TrimRight(string(out), "\r\n")
	if got != want {
		provisioning.LogWarning(b.Observer, "kube-context", "current context is "+got+", expected "+want)
		return false
	}
	return true
}

// BindAndVerify binds the context and fails with ErrContextMismatch when
// verification does not confirm it.
func (b *Binder) BindAndVerify(ctx context.Context, t Target) error {
	if err := b.Bind(ctx, t); err != nil {
		return err
	}
	if !b.Verify(ctx, t) {
		return errors.Wrapf(ErrContextMismatch, "expected %s", b.ContextName(t))
	}
	return nil
}

func (b *Binder) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	res, err := b.Runner.Run(ctx, gateway.Command{Name: name, Args: args, Env: b.Run.Env})
	if err != nil {
		return nil, err
	}
	return res.Stdout, nil
}

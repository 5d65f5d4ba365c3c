// Package infra implements the creation actions the reconciler invokes:
// targeted terraform applies for cloud resources and kubectl applies for
// cluster objects. Existence is decided elsewhere; these actions only create.
package infra

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/kubeci-dev/ciprov/internal/gateway"
	"github.com/kubeci-dev/ciprov/internal/provisioning"
	"github.com/kubeci-dev/ciprov/internal/workspace"
)

// Terraform runs targeted applies in the staged terraform directory.
type Terraform struct {
	Runner   gateway.Runner
	Run      *workspace.RunContext
	Dir      string
	// VarsFile is relative to Dir.
	VarsFile string
	Observer provisioning.Observer

	initialized bool
}

// NewTerraform creates a terraform driver for the staged directory dir.
func NewTerraform(runner gateway.Runner, run *workspace.RunContext, dir, varsFile string, observer provisioning.Observer) *Terraform {
	return &Terraform{Runner: runner, Run: run, Dir: dir, VarsFile: varsFile, Observer: observer}
}

// Init runs terraform init once per run directory.
func (t *Terraform) Init(ctx context.Context) error {
	if t.initialized {
		return nil
	}
	if _, err := t.exec(ctx, "init", "-input=false", "-no-color"); err != nil {
		return errors.Wrap(err, "terraform init failed")
	}
	t.initialized = true
	return nil
}

// Apply applies a single resource address.
func (t *Terraform) Apply(ctx context.Context, address string) error {
	if err := t.Init(ctx); err != nil {
		return err
	}
	_, err := t.exec(ctx, "apply", "-auto-approve", "-input=false", "-no-color",
		"-var-file="+t.VarsFile, "-target="+address)
	if err != nil {
		return errors.Wrapf(err, "terraform apply of %s failed", address)
	}
	return nil
}

// StateList returns the addresses recorded in terraform state.
func (t *Terraform) StateList(ctx context.Context) ([]string, error) {
	if err := t.Init(ctx); err != nil {
		return nil, err
	}
	res, err := t.exec(ctx, "state", "list")
	if err != nil {
		// An empty state is reported as an error by some terraform versions.
		if strings.Contains(err.Error(), "No state file was found") {
			return nil, nil
		}
		return nil, errors.Wrap(err, "terraform state list failed")
	}

	var addrs []string
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			addrs = append(addrs, line)
		}
	}
	return addrs, nil
}

// StateRemove drops address from terraform state without touching the
// real resource.
func (t *Terraform) StateRemove(ctx context.Context, address string) error {
	if _, err := t.exec(ctx, "state", "rm", address); err != nil {
		return errors.Wrapf(err, "terraform state rm %s failed", address)
	}
	return nil
}

// CreateDisk applies the disk target.
func (t *Terraform) CreateDisk(address string) func(context.Context) error {
	return func(ctx context.Context) error {
		return t.Apply(ctx, address)
	}
}

// CreateCluster applies the cluster target. It is only called when the live
// cluster is absent, so a state record for it is stale and is dropped
// first; otherwise terraform would consider the cluster already managed.
func (t *Terraform) CreateCluster(address string) func(context.Context) error {
	return func(ctx context.Context) error {
		addrs, err := t.StateList(ctx)
		if err != nil {
			return err
		}
		for _, a := range addrs {
			if a == address {
				t.Observer.Printf("State records %s but the cluster does not exist, dropping stale record", address)
				if err := t.StateRemove(ctx, address); err != nil {
					return err
				}
				break
			}
		}
		return t.Apply(ctx, address)
	}
}

func (t *Terraform) exec(ctx context.Context, args ...string) (gateway.Result, error) {
	env := append([]string{"TF_IN_AUTOMATION=1"}, t.Run.Env...)
	return t.Runner.Run(ctx, gateway.Command{Name: "terraform", Args: args, Dir: t.Dir, Env: env})
}

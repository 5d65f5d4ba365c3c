package provisioning

import (
	"context"

	"github.com/kubeci-dev/ciprov/internal/config"
	"github.com/kubeci-dev/ciprov/internal/metrics"
	"github.com/kubeci-dev/ciprov/internal/tfvars"
	"github.com/kubeci-dev/ciprov/internal/workspace"
)

// Context wraps all dependencies and state needed for a provisioning phase.
// Run and Vars are populated by the staging and variables phases and are
// read-only afterwards.
type Context struct {
	context.Context
	Config   *config.Config
	Run      *workspace.RunContext
	Vars     tfvars.Variables
	Observer Observer
	Metrics  *metrics.Recorder
}

// NewContext creates a new provisioning context.
func NewContext(ctx context.Context, cfg *config.Config, observer Observer, rec *metrics.Recorder) *Context {
	return &Context{
		Context:  ctx,
		Config:   cfg,
		Observer: observer,
		Metrics:  rec,
	}
}

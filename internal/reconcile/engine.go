// Package reconcile creates declared resources only when they are missing.
//
// The engine does not order resources. Callers reconcile the cluster before
// binding its access context, and everything cluster-scoped only after the
// context is bound and verified.
package reconcile

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/kubeci-dev/ciprov/internal/oracle"
	"github.com/kubeci-dev/ciprov/internal/provisioning"
)

// ErrAlreadyReconciled is returned when a resource is reconciled twice by
// the same engine.
var ErrAlreadyReconciled = errors.New("resource already reconciled in this run")

// Outcome is the result of reconciling one resource.
type Outcome string

// Reconcile outcomes.
const (
	OutcomeExisting Outcome = "existing"
	OutcomeCreated  Outcome = "created"
	OutcomeFailed   Outcome = "failed"
)

// Resource describes one declared resource. Create must be safe to skip
// entirely when Check reports the resource present.
type Resource struct {
	Kind   string
	Name   string
	Check  func(ctx context.Context) oracle.Presence
	Create func(ctx context.Context) error
}

func (r Resource) key() string {
	return r.Kind + "/" + r.Name
}

// Result records what happened to one resource.
type Result struct {
	Kind     string
	Name     string
	Observed oracle.Presence
	Outcome  Outcome
}

// Engine reconciles resources one at a time.
type Engine struct {
	observer provisioning.Observer
	phase    string

	seen    map[string]struct{}
	results []Result

	// OnResult, when set, is called after every reconcile.
	OnResult func(Result)
}

// NewEngine creates an engine logging to observer under the given phase name.
func NewEngine(observer provisioning.Observer, phase string) *Engine {
	return &Engine{
		observer: observer,
		phase:    phase,
		seen:     make(map[string]struct{}),
	}
}

// Reconcile checks for res and creates it when absent. A failure of Create
// is returned without retrying and without checking existence again.
func (e *Engine) Reconcile(ctx context.Context, res Resource) (Outcome, error) {
	if res.Check == nil || res.Create == nil {
		return "", errors.Newf("%s %q: check and create must both be set", res.Kind, res.Name)
	}
	if _, dup := e.seen[res.key()]; dup {
		return "", errors.Wrapf(ErrAlreadyReconciled, "%s %q", res.Kind, res.Name)
	}
	e.seen[res.key()] = struct{}{}

	observed := res.Check(ctx)
	if observed == oracle.Unknown {
		provisioning.LogResourceUnknown(e.observer, e.phase, res.Kind, res.Name)
	}

	if oracle.Exists(observed) {
		provisioning.LogResourceExists(e.observer, e.phase, res.Kind, res.Name)
		e.record(res, observed, OutcomeExisting)
		return OutcomeExisting, nil
	}

	provisioning.LogResourceCreating(e.observer, e.phase, res.Kind, res.Name)
	if err := res.Create(ctx); err != nil {
		provisioning.LogResourceFailed(e.observer, e.phase, res.Kind, res.Name, err)
		e.record(res, observed, OutcomeFailed)
		return OutcomeFailed, errors.Wrapf(err, "failed to create %s %q", res.Kind, res.Name)
	}

	provisioning.LogResourceCreated(e.observer, e.phase, res.Kind, res.Name)
	e.record(res, observed, OutcomeCreated)
	return OutcomeCreated, nil
}

func (e *Engine) record(res Resource, observed oracle.Presence, outcome Outcome) {
	r := Result{Kind: res.Kind, Name: res.Name, Observed: observed, Outcome: outcome}
	e.results = append(e.results, r)
	if e.OnResult != nil {
		e.OnResult(r)
	}
}

// Results returns every reconcile result in order.
func (e *Engine) Results() []Result {
	return append([]Result(nil), e.results...)
}

// Created returns the resources created by this engine.
func (e *Engine) Created() []Result {
	var out []Result
	for _, r := range e.results {
		if r.Outcome == OutcomeCreated {
			out = append(out, r)
		}
	}
	return out
}

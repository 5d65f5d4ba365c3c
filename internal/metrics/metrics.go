// Package metrics records what a single run did as Prometheus samples.
//
// A run is a short-lived process, so nothing is served over HTTP. The
// registry is written once, at the end of the run, in the text exposition
// format (node_exporter textfile collector compatible).
package metrics

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ciprov"

// Recorder holds the per-run registry.
type Recorder struct {
	registry     *prometheus.Registry
	resources    *prometheus.CounterVec
	stepDuration *prometheus.GaugeVec
	lastRun      prometheus.Gauge
	success      prometheus.Gauge
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		resources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resources_total",
			Help:      "Reconciled resources by kind and outcome.",
		}, []string{"kind", "outcome"}),
		stepDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall-clock duration of each pipeline step.",
		}, []string{"step"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished.",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the run succeeded, 0 otherwise.",
		}),
	}
	r.registry.MustRegister(r.resources, r.stepDuration, r.lastRun, r.success)
	return r
}

// Resource counts one reconcile outcome.
func (r *Recorder) Resource(kind, outcome string) {
	if r == nil {
		return
	}
	r.resources.WithLabelValues(kind, outcome).Inc()
}

// Step records how long a step took.
func (r *Recorder) Step(name string, d time.Duration) {
	if r == nil {
		return
	}
	r.stepDuration.WithLabelValues(name).Set(d.Seconds())
}

// Finish stamps the run result.
func (r *Recorder) Finish(now time.Time, ok bool) {
	if r == nil {
		return
	}
	r.lastRun.Set(float64(now.Unix()))
	if ok {
		r.success.Set(1)
	} else {
		r.success.Set(0)
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteFile writes the registry to path atomically.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}

package handlers

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"

	"github.com/kubeci-dev/ciprov/internal/archive"
	"github.com/kubeci-dev/ciprov/internal/config"
	"github.com/kubeci-dev/ciprov/internal/orchestration"
)

// Archiver stores run records. *archive.Client satisfies it.
type Archiver interface {
	Store(ctx context.Context, prefix, runID string, objects []archive.Object) ([]string, error)
}

// newArchiver creates the archive client for the configured bucket.
var newArchiver = func(ctx context.Context, cfg *config.Config) (Archiver, error) {
	return archive.NewClient(ctx, cfg.ArchiveEndpoint, cfg.ArchiveRegion,
		cfg.ArchiveAccessKey, cfg.ArchiveSecretKey, cfg.ArchiveBucket)
}

// runRecord is the JSON document uploaded for each run.
type runRecord struct {
	RunID     string           `json:"runId"`
	Method    string           `json:"method"`
	Succeeded bool             `json:"succeeded"`
	Error     string           `json:"error,omitempty"`
	Deployed  bool             `json:"deployed"`
	Duration  string           `json:"duration"`
	Resources []resourceRecord `json:"resources"`
	Pruned    []string         `json:"pruned,omitempty"`
}

type resourceRecord struct {
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Observed string `json:"observed"`
	Outcome  string `json:"outcome"`
}

func newRunRecord(report *orchestration.Report, runErr error) runRecord {
	rec := runRecord{
		RunID:     report.RunID,
		Method:    string(report.Method),
		Succeeded: runErr == nil,
		Deployed:  report.Deployed,
		Duration:  report.Duration.Round(time.Millisecond).String(),
		Resources: []resourceRecord{},
		Pruned:    report.Pruned.Removed,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	for _, r := range report.Results {
		rec.Resources = append(rec.Resources, resourceRecord{
			Kind:     r.Kind,
			Name:     r.Name,
			Observed: r.Observed.String(),
			Outcome:  string(r.Outcome),
		})
	}
	return rec
}

// archiveRun uploads the run record and, when one was written, the metrics
// file. Failures are logged; they never change the run's exit status.
func archiveRun(ctx context.Context, cfg *config.Config, log logr.Logger, report *orchestration.Report, runErr error) {
	if cfg.ArchiveBucket == "" || report == nil || report.RunID == "" {
		return
	}

	data, err := json.MarshalIndent(newRunRecord(report, runErr), "", "  ")
	if err != nil {
		log.Error(err, "failed to encode run record")
		return
	}
	objects := []archive.Object{{Name: "record.json", ContentType: "application/json", Data: data}}

	if cfg.MetricsFile != "" {
		if prom, rerr := os.ReadFile(cfg.MetricsFile); rerr == nil {
			objects = append(objects, archive.Object{Name: "metrics.prom", ContentType: "text/plain; version=0.0.4", Data: prom})
		} else {
			log.V(1).Info("metrics file not archived", "path", cfg.MetricsFile, "error", rerr.Error())
		}
	}

	client, err := newArchiver(ctx, cfg)
	if err != nil {
		log.Error(errors.Wrap(err, "failed to create archive client"), "run record not archived")
		return
	}
	keys, err := client.Store(ctx, cfg.ArchivePrefix, report.RunID, objects)
	if err != nil {
		log.Error(err, "failed to archive run record", "bucket", cfg.ArchiveBucket)
	}
	if len(keys) > 0 {
		log.Info("archived run record", "bucket", cfg.ArchiveBucket, "keys", keys)
	}
}

// Package health reports the state of the service's subsystems: the
// index connection, blob storage writability, reaper liveness, and the
// identifier wordlist.
package health

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/embershare/ember/internal/constants"
	"github.com/embershare/ember/internal/logging"
	"github.com/embershare/ember/internal/models"
	"github.com/embershare/ember/internal/storage"
)

// Subsystem status values.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Overall report states. The scheduler is advisory: a stale heartbeat
// degrades nothing because downloads still work without the reaper.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Index is the subset of index operations the reporter consumes.
type Index interface {
	Ping(ctx context.Context) error
	SchedulerHeartbeat(ctx context.Context) (time.Time, error)
}

// Reporter assembles the health response.
type Reporter struct {
	ix      Index
	paths   *storage.Paths
	words   int
	version string
	tracker *Tracker
	logger  *logging.Logger
}

// New wires a Reporter. words is the loaded wordlist cardinality.
func New(ix Index, paths *storage.Paths, words int, version string, tracker *Tracker, logger *logging.Logger) *Reporter {
	return &Reporter{
		ix:      ix,
		paths:   paths,
		words:   words,
		version: version,
		tracker: tracker,
		logger:  logger,
	}
}

// Report probes every subsystem. The report is always produced; probe
// failures show up as offline entries, never as errors.
func (r *Reporter) Report(ctx context.Context) *models.HealthResponse {
	services := map[string]string{
		"index":      StatusOffline,
		"storage":    StatusOffline,
		"scheduler":  StatusOffline,
		"identifier": StatusOffline,
	}

	if err := r.ix.Ping(ctx); err == nil {
		services["index"] = StatusOnline
	}

	if r.storageWritable() {
		services["storage"] = StatusOnline
	}

	if beat, err := r.ix.SchedulerHeartbeat(ctx); err == nil && !beat.IsZero() {
		if time.Since(beat) <= constants.HeartbeatFreshness {
			services["scheduler"] = StatusOnline
		}
	}

	if r.words == constants.WordlistSize {
		services["identifier"] = StatusOnline
	}

	status := StatusHealthy
	for _, critical := range []string{"index", "storage", "identifier"} {
		if services[critical] != StatusOnline {
			status = StatusDegraded
			break
		}
	}

	if status == StatusHealthy {
		r.logger.Debug().Interface("services", services).Msg("Health check completed")
	} else {
		r.logger.Warn().Interface("services", services).Msg("Health check degraded")
	}

	return &models.HealthResponse{
		Status:        status,
		Version:       r.version,
		Timestamp:     time.Now().UTC(),
		Services:      services,
		UptimeSeconds: r.tracker.UptimeSeconds(),
		StartedAt:     r.tracker.StartedAt(),
	}
}

// storageWritable proves write access by creating and removing a probe
// file in the scratch directory. A stat-based permission check would
// miss read-only mounts.
func (r *Reporter) storageWritable() bool {
	probe := filepath.Join(r.paths.TempDir(), constants.StorageProbeFile)
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return false
	}
	if err := os.Remove(probe); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to remove storage probe file")
	}
	return true
}

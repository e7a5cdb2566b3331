// Package reaper reconciles on-disk upload directories against the
// index. A directory whose identifier has no index record is an orphan;
// once it is older than the configured grace age it is securely shredded.
// The age gate is the only synchronization with the upload path: a fresh
// upload exists on disk before its index write commits, so the grace
// must exceed the longest plausible upload duration.
package reaper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/embershare/ember/internal/constants"
	"github.com/embershare/ember/internal/diskspace"
	"github.com/embershare/ember/internal/logging"
	"github.com/embershare/ember/internal/storage"
)

// Index is the subset of index operations the reaper consumes.
type Index interface {
	Exists(ctx context.Context, id string) (bool, error)
	SetLastCleanup(ctx context.Context, t time.Time) error
	SetSchedulerHeartbeat(ctx context.Context, t time.Time) error
}

// Reaper is the background orphan collector plus its liveness heartbeat.
type Reaper struct {
	ix        Index
	repo      *storage.Repository
	paths     *storage.Paths
	interval  time.Duration
	orphanAge time.Duration
	logger    *logging.Logger

	// Shutdown coordination
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

// New creates a reaper. interval is the sweep cadence, orphanAge the
// minimum directory age before deletion.
func New(ix Index, repo *storage.Repository, paths *storage.Paths, interval, orphanAge time.Duration, logger *logging.Logger) *Reaper {
	return &Reaper{
		ix:        ix,
		repo:      repo,
		paths:     paths,
		interval:  interval,
		orphanAge: orphanAge,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start runs an immediate first sweep, then the periodic sweep and
// heartbeat loops. Sweeps run on a single goroutine, so two can never
// overlap.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reaper is already running")
	}
	r.running = true
	r.mu.Unlock()

	r.logger.Info().
		Str("base", r.paths.Base()).
		Dur("interval", r.interval).
		Dur("orphan_age", r.orphanAge).
		Msg("Reaper starting")

	r.beat(ctx)
	r.sweep(ctx)

	r.wg.Add(2)
	go r.sweepLoop(ctx)
	go r.heartbeatLoop(ctx)

	return nil
}

// Stop signals the loops to exit and waits for them.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.logger.Info().Msg("Reaper stopping")
	close(r.stopChan)
	r.wg.Wait()
	r.logger.Info().Msg("Reaper stopped")
}

// IsRunning reports whether the loops are active.
func (r *Reaper) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// RunOnce performs a single sweep. Useful for tests and one-shot
// cleanup from the CLI.
func (r *Reaper) RunOnce(ctx context.Context) {
	r.sweep(ctx)
}

func (r *Reaper) sweepLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Sweep loop cancelled by context")
			return
		case <-r.stopChan:
			return
		case tick := <-ticker.C:
			// A tick delayed past the grace window is skipped; the
			// next one serves. Within grace it still runs.
			if late := time.Since(tick); late > constants.MisfireGrace {
				r.logger.Warn().Dur("late", late).Msg("Sweep tick past misfire grace, skipping")
				continue
			}
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) heartbeatLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(constants.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.beat(ctx)
		}
	}
}

// beat writes the scheduler liveness marker the health endpoint watches.
func (r *Reaper) beat(ctx context.Context) {
	if err := r.ix.SetSchedulerHeartbeat(ctx, time.Now()); err != nil {
		r.logger.Error().Err(err).Msg("Failed to write scheduler heartbeat")
	}
}

// sweep scans the storage root once and shreds stale orphans. Errors on
// one directory never stop the scan; the index marker is written even
// when nothing was cleaned so operators can see the reaper working.
func (r *Reaper) sweep(ctx context.Context) {
	r.logger.Debug().Msg("Starting orphan sweep")

	dirs, err := r.repo.ListDirectories(r.paths.Base())
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to scan storage root")
		return
	}

	now := time.Now()
	cleaned := 0
	for _, dir := range dirs {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Sweep interrupted by context cancellation")
			return
		case <-r.stopChan:
			r.logger.Info().Msg("Sweep interrupted by stop signal")
			return
		default:
		}

		if dir.Name == storage.TempDirName {
			continue
		}

		indexed, err := r.ix.Exists(ctx, dir.Name)
		if err != nil {
			r.logger.Error().Err(err).Str("identifier", dir.Name).Msg("Failed to probe index during sweep")
			continue
		}
		if indexed {
			continue
		}

		age := now.Sub(dir.ModTime)
		if age <= r.orphanAge {
			r.logger.Debug().
				Str("identifier", dir.Name).
				Dur("age", age).
				Msg("Orphan younger than grace age, keeping")
			continue
		}

		if err := r.repo.DeleteDirectory(dir.Path); err != nil {
			r.logger.Error().Err(err).Str("identifier", dir.Name).Msg("Failed to shred orphan")
			continue
		}
		cleaned++
		r.logger.Info().
			Str("identifier", dir.Name).
			Dur("age", age).
			Msg("Shredded orphan directory")
	}

	if err := r.ix.SetLastCleanup(ctx, time.Now()); err != nil {
		r.logger.Error().Err(err).Msg("Failed to record cleanup time")
	}

	if free := diskspace.GetAvailableSpace(r.paths.Base()); free > 0 {
		r.logger.Debug().Int64("available_bytes", free).Msg("Storage headroom after sweep")
	}

	if cleaned > 0 {
		r.logger.Info().Int("cleaned", cleaned).Msg("Orphan sweep complete")
	} else {
		r.logger.Debug().Msg("Orphan sweep complete, nothing to remove")
	}
}

package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/sabanasdb/internal/cache"
	"github.com/sabanasdb/internal/database"
	"github.com/sabanasdb/internal/logging"
	"github.com/sabanasdb/internal/metrics"
	"github.com/sabanasdb/internal/storage"
)

// Reaper sweeps files stuck in the processing state past a configured
// horizon into the error state. A crashed worker or a killed process
// leaves its file in processing forever; the sweep turns that silent
// stall into a visible terminal state so the file can be re-accepted.
type Reaper struct {
	repo     *storage.Repository
	tracker  *cache.Tracker
	horizon  time.Duration
	interval time.Duration

	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewReaper returns nil when horizon is zero; a nil Reaper is inert and
// all its methods are no-ops. When interval is zero the sweep runs at
// half the horizon, at least once a minute.
func NewReaper(repo *storage.Repository, tracker *cache.Tracker, horizon, interval time.Duration) *Reaper {
	if horizon <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = horizon / 2
		if interval < time.Minute {
			interval = time.Minute
		}
	}
	return &Reaper{
		repo:     repo,
		tracker:  tracker,
		horizon:  horizon,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins the background sweep. The first sweep runs immediately
// so files orphaned by a previous process die quickly after a restart.
func (r *Reaper) Start(ctx context.Context) {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	logging.Info("starting stale job reaper",
		logging.Duration("horizon", r.horizon),
		logging.Duration("interval", r.interval))

	r.wg.Add(1)
	go r.run(ctx)
}

// Stop halts the sweep and waits for an in-progress pass to finish.
func (r *Reaper) Stop() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stop)
	r.wg.Wait()
	logging.Info("stale job reaper stopped")
}

func (r *Reaper) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Sweep(ctx)

	for {
		select {
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one pass: every file processing since before the horizon
// is conditionally moved to error. Files that finish between the scan
// and the transition lose nothing, the conditional update simply
// misses.
func (r *Reaper) Sweep(ctx context.Context) {
	if r == nil {
		return
	}
	cutoff := time.Now().UTC().Add(-r.horizon)
	ids, err := r.repo.StaleProcessingFiles(ctx, cutoff)
	if err != nil {
		logging.Error("stale file scan failed", logging.Err(err))
		return
	}

	for _, id := range ids {
		ok, err := r.repo.TryTransitionState(ctx, id, database.StateProcessing, database.StateError, storage.StampFinish)
		if err != nil {
			logging.Error("reap transition failed", logging.FileID(id), logging.Err(err))
			continue
		}
		if !ok {
			continue
		}
		if err := r.tracker.Update(ctx, id, func(j *cache.JobRecord) {
			now := time.Now().UTC()
			j.State = database.StateError
			j.FinishedAt = &now
			j.Error = "processing exceeded " + r.horizon.String()
		}); err != nil {
			logging.Debug("job journal update failed", logging.FileID(id), logging.Err(err))
		}
		metrics.JobsCompleted.WithLabelValues("error").Inc()
		logging.Warn("reaped stale processing file",
			logging.FileID(id), logging.Duration("horizon", r.horizon))
	}
}

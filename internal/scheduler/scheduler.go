// Package scheduler runs the periodic maintenance sweep: old batch records, expired
// trash and rows left behind by deleted items.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reelpress/internal/batch"
	"reelpress/internal/storage"
)

// Options configures a Scheduler. Zero retentions disable the matching purge.
type Options struct {
	Interval       time.Duration
	BatchRetention time.Duration
	TrashRetention time.Duration
}

// Report counts what one sweep removed.
type Report struct {
	Batches int64                `json:"batches"`
	Trashed int64                `json:"trashed"`
	Orphans storage.CleanupStats `json:"orphans"`
}

// Scheduler periodically cleans up the store.
type Scheduler struct {
	store storage.Storage
	opts  Options
	log   *slog.Logger
	tick  time.Duration
	now   func() time.Time
}

// New creates a Scheduler. A non-positive interval defaults to six hours.
func New(store storage.Storage, opts Options, log *slog.Logger) *Scheduler {
	tick := opts.Interval
	if tick <= 0 {
		tick = 6 * time.Hour
	}
	return &Scheduler{
		store: store,
		opts:  opts,
		log:   log.With("component", "scheduler"),
		tick:  tick,
		now:   time.Now,
	}
}

// SetTickInterval overrides the sweep interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Run sweeps once immediately and then on every tick, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.sweepAndLog(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *Scheduler) sweepAndLog(ctx context.Context) {
	r, err := s.Sweep(ctx)
	if err != nil {
		s.log.Error("maintenance sweep", "error", err)
		return
	}
	if r.Batches+r.Trashed+r.Orphans.Total() > 0 {
		s.log.Info("maintenance sweep", "batches", r.Batches, "trashed", r.Trashed, "orphans", r.Orphans.Total())
	}
}

// Sweep runs all cleanup steps once. Items are purged before orphans are collected so
// their dependent rows go in the same sweep.
func (s *Scheduler) Sweep(ctx context.Context) (Report, error) {
	var r Report
	now := s.now()

	if s.opts.BatchRetention > 0 {
		n, err := s.store.DeleteOptionsBefore(ctx, batch.OptionPrefix, now.Add(-s.opts.BatchRetention))
		if err != nil {
			return r, fmt.Errorf("purge batch records: %w", err)
		}
		r.Batches = n
	}
	if s.opts.TrashRetention > 0 {
		n, err := s.store.PurgeTrashed(ctx, now.Add(-s.opts.TrashRetention))
		if err != nil {
			return r, fmt.Errorf("purge trash: %w", err)
		}
		r.Trashed = n
	}

	stats, err := s.store.DeleteOrphans(ctx)
	if err != nil {
		return r, fmt.Errorf("delete orphans: %w", err)
	}
	r.Orphans = stats
	return r, nil
}

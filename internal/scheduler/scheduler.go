// Package scheduler runs the periodic background sweeps: rate-limiter
// window cleanup and session expiry. Sweeps run off the hot path on a
// fixed cron tick.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/convohub/convo-gateway/internal/ratelimit"
	"github.com/convohub/convo-gateway/internal/store"
)

// LockReleaser drops per-session serialization state for deleted ids.
type LockReleaser interface {
	ReleaseLock(id string)
}

type Scheduler struct {
	cron    *cron.Cron
	store   *store.Store
	limiter *ratelimit.Limiter
	locks   LockReleaser
	logger  *slog.Logger
}

// New creates a scheduler sweeping every interval.
func New(st *store.Store, limiter *ratelimit.Limiter, locks LockReleaser, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		store:   st,
		limiter: limiter,
		locks:   locks,
		logger:  logger,
	}
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}
	return s, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.limiter.Sweep()
	removed := s.store.SweepExpired(ctx, time.Now().UTC())
	if s.locks != nil {
		for _, id := range removed {
			s.locks.ReleaseLock(id)
		}
	}
	s.logger.Debug("sweep complete", "sessions_removed", len(removed))
}

// Package jobs schedules background work for the ledger service.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Syncer drains the offline queue into the ledger.
type Syncer interface {
	SyncPending(ctx context.Context) (bool, error)
}

// SyncScheduler replays the offline queue on a cron schedule. Scheduled runs never
// overlap; a tick that fires while a sync is in progress is skipped.
type SyncScheduler struct {
	cron    *cron.Cron
	syncer  Syncer
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	running bool
}

// NewSyncScheduler registers the sync job. schedule accepts six-field cron
// expressions (with seconds) and descriptors such as "@every 1m".
func NewSyncScheduler(syncer Syncer, schedule string, logger *zap.Logger) (*SyncScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SyncScheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		syncer:  syncer,
		logger:  logger,
		timeout: time.Minute,
	}

	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *SyncScheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("scheduled offline sync failed", zap.Error(err))
	}
}

// RunOnce performs a single sync and reports whether the queue is empty.
func (s *SyncScheduler) RunOnce(ctx context.Context) (bool, error) {
	start := time.Now()
	synced, err := s.syncer.SyncPending(ctx)
	if err != nil {
		return false, err
	}
	if synced {
		s.logger.Debug("offline queue synced", zap.Duration("took", time.Since(start)))
	} else {
		s.logger.Warn("offline queue partially synced, will retry", zap.Duration("took", time.Since(start)))
	}
	return synced, nil
}

func (s *SyncScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("offline sync scheduler started")
}

// Stop halts the schedule and waits for an in-flight sync, or for ctx.
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("offline sync scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *SyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

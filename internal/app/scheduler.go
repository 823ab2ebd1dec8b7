package app

import (
	"context"
	"sync"
	"time"

	"github.com/corvusfin/corvus/internal/common"
	"github.com/corvusfin/corvus/internal/interfaces"
)

// SchedulerActor attributes scheduler-originated snapshots in the audit trail.
const SchedulerActor = "scheduler"

// SnapshotScheduler periodically recomputes a net worth snapshot for every
// active entity. Snapshot upserts are idempotent per calendar date, so an
// overlapping manual recomputation is harmless.
type SnapshotScheduler struct {
	registry interfaces.RegistryService
	networth interfaces.NetWorthService
	logger   *common.Logger
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSnapshotScheduler creates a stopped scheduler.
func NewSnapshotScheduler(registry interfaces.RegistryService, networth interfaces.NetWorthService,
	logger *common.Logger, interval time.Duration) *SnapshotScheduler {
	return &SnapshotScheduler{
		registry: registry,
		networth: networth,
		logger:   logger,
		interval: interval,
	}
}

// Start launches the background loop.
func (s *SnapshotScheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info().
		Dur("interval", s.interval).
		Msg("Snapshot scheduler started")
}

// Stop cancels the loop and waits for an in-flight pass to finish.
func (s *SnapshotScheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info().Msg("Snapshot scheduler stopped")
}

func (s *SnapshotScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.snapshotAll(ctx)
		}
	}
}

// snapshotAll recomputes today's snapshot for every active entity. A failure
// on one entity does not stop the others.
func (s *SnapshotScheduler) snapshotAll(ctx context.Context) {
	entities, err := s.registry.ListEntities(ctx, true)
	if err != nil {
		s.logger.Error().Err(err).Msg("Snapshot scheduler failed to list entities")
		return
	}

	now := time.Now().UTC()
	failures := 0
	for _, entity := range entities {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.networth.ComputeAndSnapshot(ctx, entity.ID, now, true, SchedulerActor); err != nil {
			failures++
			s.logger.Warn().
				Err(err).
				Str("entity_id", entity.ID).
				Msg("Scheduled snapshot failed")
		}
	}

	s.logger.Debug().
		Int("entities", len(entities)).
		Int("failures", failures).
		Msg("Scheduled snapshot pass complete")
}

package sched

import (
	"context"
	"errors"
	"time"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/domain/ports/repository"
	"candidate-screening/internal/infra/redis"
	"candidate-screening/internal/usecase"

	"github.com/rs/zerolog"
)

// SyncScheduler enqueues a sync job for every active requisition that has none in flight.
// A Redis lock per requisition keeps several processes from scheduling the same sync.
type SyncScheduler struct {
	interval time.Duration
	priority int
	reqs     repository.RequisitionRepository
	jobs     repository.JobRepository
	queue    usecase.QueueUseCase
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewSyncScheduler(
	interval time.Duration,
	priority int,
	reqs repository.RequisitionRepository,
	jobs repository.JobRepository,
	queue usecase.QueueUseCase,
	locker redis.Locker,
	logger *zerolog.Logger,
) *SyncScheduler {
	l := logger.With().Str("component", "SyncScheduler").Logger()
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &SyncScheduler{
		interval: interval,
		priority: priority,
		reqs:     reqs,
		jobs:     jobs,
		queue:    queue,
		locker:   locker,
		log:      &l,
	}
}

func (s *SyncScheduler) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("Starting sync scheduler")
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Stopping sync scheduler")
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce returns the number of sync jobs enqueued.
func (s *SyncScheduler) RunOnce(ctx context.Context) int {
	reqs, err := s.reqs.ListActive(ctx, repository.NoTX)
	if err != nil {
		s.log.Error().Err(err).Msg("list active requisitions")
		return 0
	}
	n := 0
	for _, req := range reqs {
		ok, err := s.schedule(ctx, req)
		if err != nil {
			s.log.Error().Err(err).Str("requisition_id", req.ID).Msg("schedule sync")
			continue
		}
		if ok {
			n++
		}
	}
	if n > 0 {
		s.log.Info().Int("count", n).Msg("sync jobs scheduled")
	}
	return n
}

func (s *SyncScheduler) schedule(ctx context.Context, req *model.Requisition) (bool, error) {
	key := redis.SyncLockKey(req.ID)
	token, err := s.locker.TryLock(ctx, key, s.interval/2)
	if errors.Is(err, domain.ErrLockNotAcquired) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn().Err(err).Str("requisition_id", req.ID).Msg("release sync lock")
		}
	}()

	active, err := s.jobs.HasActiveSync(ctx, repository.NoTX, req.ID)
	if err != nil || active {
		return false, err
	}
	_, err = s.queue.Enqueue(ctx, usecase.EnqueueInput{
		JobType:       model.JobTypeSync,
		RequisitionID: req.ID,
		Priority:      s.priority,
		Source:        "schedule",
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

package sched

import (
	"context"
	"time"

	"candidate-screening/internal/usecase"

	"github.com/rs/zerolog"
)

// Reclaimer periodically returns jobs whose worker went silent to the retry policy.
type Reclaimer struct {
	interval time.Duration
	liveness time.Duration
	batch    int
	pipeline usecase.PipelineUseCase
	log      *zerolog.Logger
}

func NewReclaimer(interval, liveness time.Duration, batch int, pipeline usecase.PipelineUseCase, logger *zerolog.Logger) *Reclaimer {
	l := logger.With().Str("component", "Reclaimer").Logger()
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	return &Reclaimer{
		interval: interval,
		liveness: liveness,
		batch:    batch,
		pipeline: pipeline,
		log:      &l,
	}
}

func (r *Reclaimer) Run(ctx context.Context) error {
	r.log.Info().Dur("interval", r.interval).Dur("liveness", r.liveness).Msg("Starting reclaimer")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("Stopping reclaimer")
			return ctx.Err()
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce sweeps until a batch comes back short.
func (r *Reclaimer) RunOnce(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n, err := r.pipeline.Reclaim(ctx, r.liveness, r.batch)
		if err != nil {
			r.log.Error().Err(err).Msg("reclaim sweep failed")
			break
		}
		total += n
		if n < r.batch {
			break
		}
	}
	if total > 0 {
		r.log.Warn().Int("count", total).Msg("stale jobs reclaimed")
	}
	return total
}

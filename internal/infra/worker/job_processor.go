package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/infra/metrics"
	"candidate-screening/internal/usecase"
)

const (
	maxConsecutiveErrors = 5
	maxErrorBackoff      = 30 * time.Second
)

// JobProcessor is the body of one dispatch loop: claim a due job, run its stage handler under a
// deadline and hand the result back to the pipeline. It keeps no state between jobs.
type JobProcessor struct {
	pipeline     usecase.PipelineUseCase
	registry     *usecase.StageRegistry
	runTimeout   time.Duration
	pollInterval time.Duration
	log          *zerolog.Logger
}

func NewJobProcessor(
	pipeline usecase.PipelineUseCase,
	registry *usecase.StageRegistry,
	runTimeout time.Duration,
	pollInterval time.Duration,
	logger *zerolog.Logger,
) *JobProcessor {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	l := logger.With().Str("component", "JobProcessor").Logger()
	return &JobProcessor{
		pipeline:     pipeline,
		registry:     registry,
		runTimeout:   runTimeout,
		pollInterval: pollInterval,
		log:          &l,
	}
}

// Run loops until ctx is cancelled. It satisfies Loop.
func (p *JobProcessor) Run(ctx context.Context, workerID string) {
	log := p.log.With().Str("worker_id", workerID).Logger()
	log.Info().Msg("dispatch loop started")

	errorCount := 0
	backoff := time.Second
	for ctx.Err() == nil {
		worked, err := p.ProcessOne(ctx, workerID)
		switch {
		case err != nil && ctx.Err() == nil:
			errorCount++
			log.Error().Err(err).Int("consecutive_errors", errorCount).Msg("dispatch error")
			wait := p.pollInterval
			if errorCount >= maxConsecutiveErrors {
				wait = backoff
				backoff = min(backoff*2, maxErrorBackoff)
				log.Warn().Dur("backoff", wait).Msg("backing off after consecutive errors")
			}
			sleep(ctx, wait)
		case worked:
			errorCount, backoff = 0, time.Second
		default:
			errorCount, backoff = 0, time.Second
			sleep(ctx, p.pollInterval)
		}
	}
	log.Info().Msg("dispatch loop stopped")
}

// ProcessOne handles at most one job. worked is false when nothing was due.
func (p *JobProcessor) ProcessOne(ctx context.Context, workerID string) (worked bool, err error) {
	job, err := p.pipeline.Claim(ctx, workerID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim: %w", err)
	}

	log := p.log.With().
		Str("worker_id", workerID).
		Str("job_id", job.ID).
		Str("job_type", string(job.JobType)).
		Str("application_id", job.AppID()).
		Int("attempts", job.Attempts).
		Logger()
	log.Debug().Msg("job claimed")

	// a leased job must always be settled, even during shutdown
	settleCtx := context.WithoutCancel(ctx)
	start := time.Now()

	sc, err := p.pipeline.Begin(ctx, job)
	if err != nil {
		if errors.Is(err, domain.ErrApplicationClosed) || errors.Is(err, domain.ErrNotFound) {
			log.Info().Err(err).Msg("abandoning job")
			if aerr := p.pipeline.Abandon(settleCtx, job, err.Error()); aerr != nil && !errors.Is(aerr, domain.ErrLeaseLost) {
				return true, fmt.Errorf("abandon %s: %w", job.ID, aerr)
			}
			return true, nil
		}
		return true, p.settle(settleCtx, log, job, model.TransientFailure("load stage context: "+err.Error()), start)
	}

	handler, err := p.registry.Handler(job.JobType)
	if err != nil {
		return true, p.settle(settleCtx, log, job, model.FromError(domain.Fatal("dispatch", err)), start)
	}

	res := p.execute(ctx, handler, job, sc)
	return true, p.settle(settleCtx, log, job, res, start)
}

func (p *JobProcessor) execute(ctx context.Context, h usecase.StageHandler, job *model.Job, sc *usecase.StageContext) (res model.StageResult) {
	if p.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.runTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			res = model.PermanentFailure(fmt.Sprintf("stage handler panicked: %v", r))
		}
	}()
	return h.Execute(ctx, job, sc)
}

func (p *JobProcessor) settle(ctx context.Context, log zerolog.Logger, job *model.Job, res model.StageResult, start time.Time) error {
	metrics.ObserveJobDuration(string(job.JobType), time.Since(start))

	err := p.pipeline.Apply(ctx, job, res)
	switch {
	case errors.Is(err, domain.ErrLeaseLost):
		log.Warn().Msg("lease lost before the result was written; dropping it")
		return nil
	case err != nil:
		return fmt.Errorf("apply %s: %w", job.ID, err)
	}
	log.Info().Str("outcome", res.Outcome.String()).Dur("took", time.Since(start)).Msg("job finished")
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

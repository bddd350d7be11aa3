// File: internal/usecase/pipeline_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/domain/ports/adapter"
	"candidate-screening/internal/domain/ports/repository"
	"candidate-screening/internal/infra/metrics"
)

// Compile-time check
var _ PipelineUseCase = (*pipelineUC)(nil)

// PipelineUseCase is the dispatch loop's view of the queue: lease a job, load what its handler
// needs, and write the outcome back atomically.
type PipelineUseCase interface {
	Claim(ctx context.Context, workerID string) (*model.Job, error)
	// Begin loads the stage context. domain.ErrApplicationClosed and domain.ErrNotFound mean the
	// job's preconditions are gone and it should be abandoned.
	Begin(ctx context.Context, job *model.Job) (*StageContext, error)
	Apply(ctx context.Context, job *model.Job, res model.StageResult) error
	Abandon(ctx context.Context, job *model.Job, reason string) error
	Reclaim(ctx context.Context, liveness time.Duration, limit int) (int, error)
}

type pipelineUC struct {
	jobs        repository.JobRepository
	apps        repository.ApplicationRepository
	reqs        repository.RequisitionRepository
	tm          repository.TransactionManager
	policy      *RetryPolicy
	alerter     adapter.OperatorAlerter
	maxAttempts int
	log         *zerolog.Logger
	now         func() time.Time
}

func NewPipelineUseCase(
	jobs repository.JobRepository,
	apps repository.ApplicationRepository,
	reqs repository.RequisitionRepository,
	tm repository.TransactionManager,
	policy *RetryPolicy,
	alerter adapter.OperatorAlerter,
	maxAttempts int,
	logger *zerolog.Logger,
) *pipelineUC {
	return &pipelineUC{
		jobs:        jobs,
		apps:        apps,
		reqs:        reqs,
		tm:          tm,
		policy:      policy,
		alerter:     alerter,
		maxAttempts: maxAttempts,
		log:         logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (u *pipelineUC) WithClock(now func() time.Time) *pipelineUC {
	u.now = now
	return u
}

func (u *pipelineUC) Claim(ctx context.Context, workerID string) (*model.Job, error) {
	job, err := u.jobs.ClaimNext(ctx, workerID, u.now())
	if err != nil {
		return nil, err
	}
	metrics.IncJobClaimed(string(job.JobType))
	return job, nil
}

func (u *pipelineUC) Begin(ctx context.Context, job *model.Job) (*StageContext, error) {
	sc := &StageContext{Now: u.now()}

	if job.JobType.RequisitionLevel() {
		req, err := u.reqs.FindByID(ctx, repository.NoTX, job.ReqID())
		if err != nil {
			return nil, err
		}
		sc.Requisition = req
		return sc, nil
	}

	app, err := u.apps.FindByID(ctx, repository.NoTX, job.AppID())
	if err != nil {
		return nil, err
	}
	if app.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", domain.ErrApplicationClosed, app.Status)
	}
	req, err := u.reqs.FindByID(ctx, repository.NoTX, app.RequisitionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	sc.Application = app
	sc.Requisition = req

	if running, ok := RunningStatus(job.JobType); ok {
		if changed, terr := CheckTransition(app.Status, running); terr == nil && changed {
			if err := u.apps.UpdateStatus(ctx, repository.NoTX, app.ID, app.Status, running); err != nil {
				return nil, err
			}
			app.Status = running
		}
	}
	return sc, nil
}

// Apply writes a stage result in one transaction. On success the job completes, the application
// advances and the next stage is enqueued; on failure the retry policy decides.
// Returns domain.ErrLeaseLost when the job was reclaimed or cleared while it ran.
func (u *pipelineUC) Apply(ctx context.Context, job *model.Job, res model.StageResult) error {
	holder := job.ClaimedBy
	now := u.now()

	if res.Outcome == model.OutcomeSuccess && res.Next != nil && !model.CanChain(job.JobType, *res.Next) {
		res = model.PermanentFailure(fmt.Sprintf("%s may not chain to %s", job.JobType, *res.Next))
	}

	if res.Outcome == model.OutcomeSuccess {
		var enqueued []*model.Job
		err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			var err error
			enqueued, err = u.applySuccess(ctx, tx, job, holder, res, now)
			return err
		})
		if err != nil {
			u.outcomeError(job, err)
			return err
		}
		metrics.IncJobOutcome(string(job.JobType), "completed")
		for _, n := range enqueued {
			source := "chain"
			if job.JobType == model.JobTypeSync {
				source = "sync"
			}
			metrics.IncJobEnqueued(string(n.JobType), source)
		}
		u.log.Info().Str("job_id", job.ID).Str("job_type", string(job.JobType)).
			Str("application_id", job.AppID()).Int("enqueued", len(enqueued)).Msg("job completed")
		return nil
	}

	var dead bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		dead, err = u.applyFailure(ctx, tx, job, holder, res.Kind(), res.Reason, now)
		return err
	})
	if err != nil {
		u.outcomeError(job, err)
		return err
	}
	u.afterFailure(ctx, job, res.Kind(), dead)
	return nil
}

func (u *pipelineUC) Abandon(ctx context.Context, job *model.Job, reason string) error {
	holder := job.ClaimedBy
	job.Abandon(u.now(), reason)
	if err := u.jobs.UpdateLeased(ctx, repository.NoTX, job, holder); err != nil {
		u.outcomeError(job, err)
		return err
	}
	metrics.IncJobOutcome(string(job.JobType), "abandoned")
	u.log.Info().Str("job_id", job.ID).Str("job_type", string(job.JobType)).Str("reason", reason).Msg("job abandoned")
	return nil
}

// Reclaim feeds jobs running longer than liveness back into the retry policy as transient failures.
func (u *pipelineUC) Reclaim(ctx context.Context, liveness time.Duration, limit int) (int, error) {
	now := u.now()
	type reclaimed struct {
		job  *model.Job
		dead bool
	}
	var done []reclaimed

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		done = done[:0]
		stale, err := u.jobs.ListStale(ctx, tx, now.Add(-liveness), limit)
		if err != nil {
			return err
		}
		for _, j := range stale {
			reason := fmt.Sprintf("stale job reclaimed: running since %s", j.StartedAt.Format(time.RFC3339))
			dead, err := u.applyFailure(ctx, tx, j, j.ClaimedBy, domain.FailureTransient, reason, now)
			if err != nil {
				return fmt.Errorf("reclaim %s: %w", j.ID, err)
			}
			done = append(done, reclaimed{job: j, dead: dead})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.AddJobsReclaimed(len(done))
	for _, r := range done {
		u.log.Warn().Str("job_id", r.job.ID).Str("job_type", string(r.job.JobType)).
			Int("attempts", r.job.Attempts).Bool("dead", r.dead).Msg("reclaimed stale job")
		u.afterFailure(ctx, r.job, domain.FailureTransient, r.dead)
	}
	return len(done), nil
}

// --- transactional steps ---

func (u *pipelineUC) applySuccess(ctx context.Context, tx repository.Tx, job *model.Job, holder string, res model.StageResult, now time.Time) ([]*model.Job, error) {
	job.Complete(now)
	if err := u.jobs.UpdateLeased(ctx, tx, job, holder); err != nil {
		return nil, err
	}

	if job.JobType == model.JobTypeSync {
		return u.fanOut(ctx, tx, job, res.Discovered, now)
	}

	app, err := u.apps.FindByID(ctx, tx, job.AppID())
	if err != nil {
		return nil, err
	}
	changed, err := CheckTransition(app.Status, res.Status)
	if err == nil && changed {
		// compare-and-set against the status read above
		err = u.apps.UpdateStatus(ctx, tx, app.ID, app.Status, res.Status)
	}
	switch {
	case errors.Is(err, domain.ErrIllegalTransition), errors.Is(err, domain.ErrApplicationClosed):
		// the application moved on while the job ran; keep its status and stop the chain here
		u.log.Warn().Err(err).Str("job_id", job.ID).Str("application_id", app.ID).Msg("status not advanced")
		return nil, nil
	case err != nil:
		return nil, err
	}

	if res.Next == nil {
		return nil, nil
	}
	next, err := model.NewJob(*res.Next, app.ID, app.RequisitionID, job.Priority, now, u.maxAttempts)
	if err != nil {
		return nil, err
	}
	if err := u.jobs.Insert(ctx, tx, next); err != nil {
		return nil, err
	}
	return []*model.Job{next}, nil
}

func (u *pipelineUC) fanOut(ctx context.Context, tx repository.Tx, job *model.Job, discovered []*model.Application, now time.Time) ([]*model.Job, error) {
	var out []*model.Job
	for _, app := range discovered {
		inserted, err := u.apps.InsertDiscovered(ctx, tx, app)
		if err != nil {
			return nil, err
		}
		if !inserted {
			continue
		}
		next, err := model.NewJob(model.JobTypeAnalyze, app.ID, app.RequisitionID, job.Priority, now, u.maxAttempts)
		if err != nil {
			return nil, err
		}
		if err := u.jobs.Insert(ctx, tx, next); err != nil {
			return nil, err
		}
		out = append(out, next)
	}
	if err := u.reqs.MarkSynced(ctx, tx, job.ReqID(), now); err != nil {
		return nil, err
	}
	return out, nil
}

func (u *pipelineUC) applyFailure(ctx context.Context, tx repository.Tx, job *model.Job, holder string, kind domain.FailureKind, reason string, now time.Time) (bool, error) {
	d := u.policy.Decide(job, kind, reason, now)
	job.Attempts = d.Attempts
	if d.IsRetry() {
		job.RetryAt(d.ScheduledFor, reason)
	} else {
		job.DeadLetter(now, reason)
	}
	if err := u.jobs.UpdateLeased(ctx, tx, job, holder); err != nil {
		return false, err
	}
	if d.IsRetry() || job.JobType.RequisitionLevel() {
		return !d.IsRetry(), nil
	}

	app, err := u.apps.FindByID(ctx, tx, job.AppID())
	if errors.Is(err, domain.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	flagReason := fmt.Sprintf("%s job %s dead-lettered (%s): %s", job.JobType, job.ID, kind, reason)
	if kind.Retryable() || app.Status.IsTerminal() {
		return true, u.apps.Flag(ctx, tx, app.ID, flagReason)
	}
	return true, u.apps.MarkFailed(ctx, tx, app.ID, app.Status, flagReason)
}

func (u *pipelineUC) afterFailure(ctx context.Context, job *model.Job, kind domain.FailureKind, dead bool) {
	ev := u.log.Warn().Str("job_id", job.ID).Str("job_type", string(job.JobType)).
		Str("application_id", job.AppID()).Str("kind", kind.String()).Int("attempts", job.Attempts)
	if !dead {
		metrics.IncJobOutcome(string(job.JobType), "retry")
		ev.Time("scheduled_for", job.ScheduledFor).Str("error", job.LastError).Msg("job rescheduled")
		return
	}
	metrics.IncJobOutcome(string(job.JobType), "dead")
	ev.Str("error", job.LastError).Msg("job dead-lettered")

	if u.alerter == nil {
		return
	}
	owner := "application " + job.AppID()
	if job.JobType.RequisitionLevel() {
		owner = "requisition " + job.ReqID()
	}
	text := fmt.Sprintf("Job %s (%s) for %s was dead-lettered after %d attempt(s) [%s]: %s",
		job.ID, job.JobType, owner, job.Attempts, kind, job.LastError)
	if err := u.alerter.Alert(ctx, text); err != nil {
		metrics.IncAlert("error")
		u.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to send operator alert")
		return
	}
	metrics.IncAlert("sent")
}

func (u *pipelineUC) outcomeError(job *model.Job, err error) {
	if errors.Is(err, domain.ErrLeaseLost) {
		metrics.IncJobOutcome(string(job.JobType), "lease_lost")
		u.log.Warn().Str("job_id", job.ID).Str("job_type", string(job.JobType)).Msg("lease lost; discarding late result")
		return
	}
	u.log.Error().Err(err).Str("job_id", job.ID).Str("job_type", string(job.JobType)).Msg("failed to apply job outcome")
}

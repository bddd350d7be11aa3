// File: internal/usecase/queue_uc.go
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
	"candidate-screening/internal/domain/ports/repository"
	"candidate-screening/internal/infra/metrics"
)

// Compile-time check
var _ QueueUseCase = (*queueUC)(nil)

// QueueUseCase backs the management API and the interview subsystem's callbacks.
type QueueUseCase interface {
	Enqueue(ctx context.Context, in EnqueueInput) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, status *model.JobStatus, offset, limit int) ([]*model.Job, error)
	Stats(ctx context.Context) (map[model.JobStatus]int, error)
	Retry(ctx context.Context, id string) (*model.Job, error)
	ClearCompleted(ctx context.Context) (int64, error)
	ClearAll(ctx context.Context) (int64, error)
	ListFlagged(ctx context.Context, offset, limit int) ([]*model.Application, error)

	InterviewStarted(ctx context.Context, applicationID string) error
	InterviewCompleted(ctx context.Context, applicationID string, transcript []byte) (*model.Job, error)
}

type EnqueueInput struct {
	JobType       model.JobType
	ApplicationID string
	RequisitionID string
	Priority      int
	ScheduledFor  time.Time
	Source        string // manual, schedule, interview
}

type queueUC struct {
	jobs        repository.JobRepository
	apps        repository.ApplicationRepository
	reqs        repository.RequisitionRepository
	artifacts   repository.ArtifactStore
	tm          repository.TransactionManager
	maxAttempts int
	log         *zerolog.Logger
}

func NewQueueUseCase(
	jobs repository.JobRepository,
	apps repository.ApplicationRepository,
	reqs repository.RequisitionRepository,
	artifacts repository.ArtifactStore,
	tm repository.TransactionManager,
	maxAttempts int,
	logger *zerolog.Logger,
) *queueUC {
	return &queueUC{
		jobs:        jobs,
		apps:        apps,
		reqs:        reqs,
		artifacts:   artifacts,
		tm:          tm,
		maxAttempts: maxAttempts,
		log:         logger,
	}
}

// Enqueue inserts a pending job. Application-level jobs fail with domain.ErrActiveJobExists while
// the application already owns a pending or running job; sync jobs are exempt.
func (u *queueUC) Enqueue(ctx context.Context, in EnqueueInput) (*model.Job, error) {
	if in.JobType.RequisitionLevel() {
		in.ApplicationID = ""
		if _, err := u.reqs.FindByID(ctx, repository.NoTX, in.RequisitionID); err != nil {
			return nil, err
		}
	} else {
		app, err := u.apps.FindByID(ctx, repository.NoTX, in.ApplicationID)
		if err != nil {
			return nil, err
		}
		if app.Status.IsTerminal() {
			return nil, fmt.Errorf("%w: %s", domain.ErrApplicationClosed, app.Status)
		}
		in.RequisitionID = app.RequisitionID
	}

	job, err := model.NewJob(in.JobType, in.ApplicationID, in.RequisitionID, in.Priority, in.ScheduledFor, u.maxAttempts)
	if err != nil {
		return nil, err
	}
	if err := u.jobs.Insert(ctx, repository.NoTX, job); err != nil {
		return nil, err
	}

	source := in.Source
	if source == "" {
		source = "manual"
	}
	metrics.IncJobEnqueued(string(job.JobType), source)
	u.log.Info().Str("job_id", job.ID).Str("job_type", string(job.JobType)).Str("application_id", job.AppID()).
		Str("requisition_id", job.ReqID()).Str("source", source).Msg("job enqueued")
	return job, nil
}

func (u *queueUC) Get(ctx context.Context, id string) (*model.Job, error) {
	return u.jobs.FindByID(ctx, repository.NoTX, id)
}

func (u *queueUC) List(ctx context.Context, status *model.JobStatus, offset, limit int) ([]*model.Job, error) {
	return u.jobs.ListByStatus(ctx, repository.NoTX, status, offset, limit)
}

func (u *queueUC) Stats(ctx context.Context) (map[model.JobStatus]int, error) {
	counts, err := u.jobs.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	for st, n := range counts {
		metrics.SetQueueDepth(string(st), n)
	}
	return counts, nil
}

// Retry re-enqueues a dead or failed job with a fresh attempt budget. The owning application gets
// its review flag cleared and, when the failure had closed it, its previous status back.
func (u *queueUC) Retry(ctx context.Context, id string) (*model.Job, error) {
	var job *model.Job
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		job, err = u.jobs.Requeue(ctx, tx, id, time.Now().UTC())
		if err != nil {
			return err
		}
		if job.AppID() == "" {
			return nil
		}
		return u.apps.Reopen(ctx, tx, job.AppID())
	})
	if err != nil {
		return nil, err
	}
	metrics.IncJobEnqueued(string(job.JobType), "retry")
	u.log.Info().Str("job_id", job.ID).Str("job_type", string(job.JobType)).Msg("job retried by operator")
	return job, nil
}

func (u *queueUC) ClearCompleted(ctx context.Context) (int64, error) {
	n, err := u.jobs.DeleteByStatus(ctx, repository.NoTX, model.JobStatusCompleted)
	if err != nil {
		return 0, err
	}
	u.log.Info().Int64("deleted", n).Msg("cleared completed jobs")
	return n, nil
}

// ClearAll deletes every job, running ones included; their late outcomes are discarded as lost leases.
func (u *queueUC) ClearAll(ctx context.Context) (int64, error) {
	n, err := u.jobs.DeleteAll(ctx, repository.NoTX)
	if err != nil {
		return 0, err
	}
	u.log.Warn().Int64("deleted", n).Msg("cleared all jobs")
	return n, nil
}

func (u *queueUC) ListFlagged(ctx context.Context, offset, limit int) ([]*model.Application, error) {
	return u.apps.ListFlagged(ctx, repository.NoTX, offset, limit)
}

// InterviewStarted records that the candidate began answering.
func (u *queueUC) InterviewStarted(ctx context.Context, applicationID string) error {
	app, err := u.apps.FindByID(ctx, repository.NoTX, applicationID)
	if err != nil {
		return err
	}
	if app.Status != model.AppStatusInterviewPending && app.Status != model.AppStatusInterviewInProgress {
		return fmt.Errorf("%w: interview started while %s", domain.ErrIllegalTransition, app.Status)
	}
	changed, err := CheckTransition(app.Status, model.AppStatusInterviewInProgress)
	if err != nil || !changed {
		return err
	}
	return u.apps.UpdateStatus(ctx, repository.NoTX, app.ID, app.Status, model.AppStatusInterviewInProgress)
}

// InterviewCompleted stores the transcript, when given, and enqueues the evaluate stage.
func (u *queueUC) InterviewCompleted(ctx context.Context, applicationID string, transcript []byte) (*model.Job, error) {
	app, err := u.apps.FindByID(ctx, repository.NoTX, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != model.AppStatusInterviewPending && app.Status != model.AppStatusInterviewInProgress {
		return nil, fmt.Errorf("%w: interview completed while %s", domain.ErrIllegalTransition, app.Status)
	}
	if len(transcript) > 0 {
		if err := u.artifacts.Put(ctx, app.ArtifactKey(model.ArtifactTranscript), transcript, "application/json"); err != nil {
			return nil, err
		}
	}
	job, err := u.Enqueue(ctx, EnqueueInput{JobType: model.JobTypeEvaluate, ApplicationID: app.ID, Source: "interview"})
	if errors.Is(err, domain.ErrActiveJobExists) {
		u.log.Warn().Str("application_id", app.ID).Msg("interview completed while another job is active")
	}
	return job, err
}

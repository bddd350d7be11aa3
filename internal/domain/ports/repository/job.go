package repository

import (
	"context"
	"time"

	"candidate-screening/internal/domain/model"
)

// -----------------------------
// Jobs
// -----------------------------

type JobRepository interface {
	// Insert stores a new pending job. Returns domain.ErrActiveJobExists when the
	// application already owns a pending or running job.
	Insert(ctx context.Context, tx Tx, job *model.Job) error

	// ClaimNext atomically leases the best eligible pending job
	// (scheduled_for <= now, priority DESC, created_at ASC) and marks it running.
	// Concurrent callers never receive the same job and never wait on each other's row locks.
	// Returns domain.ErrNotFound when nothing is eligible.
	ClaimNext(ctx context.Context, workerID string, now time.Time) (*model.Job, error)

	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)

	// UpdateLeased persists the job's mutable fields only while workerID still holds the lease.
	// Returns domain.ErrLeaseLost otherwise.
	UpdateLeased(ctx context.Context, tx Tx, job *model.Job, workerID string) error

	// ListStale returns running jobs started before cutoff, locking them for the caller's transaction
	// and skipping rows locked elsewhere. Must be called with a transaction.
	ListStale(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Job, error)

	// Requeue resets a dead or failed job to pending with zero attempts.
	Requeue(ctx context.Context, tx Tx, id string, now time.Time) (*model.Job, error)

	ListByStatus(ctx context.Context, tx Tx, status *model.JobStatus, offset, limit int) ([]*model.Job, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.JobStatus]int, error)
	HasActiveSync(ctx context.Context, tx Tx, requisitionID string) (bool, error)

	DeleteByStatus(ctx context.Context, tx Tx, status model.JobStatus) (int64, error)
	DeleteAll(ctx context.Context, tx Tx) (int64, error)
}

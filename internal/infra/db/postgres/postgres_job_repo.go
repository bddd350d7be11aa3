package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

const jobColumns = `id, application_id, requisition_id, job_type, status, priority, attempts, max_attempts,
       last_error, claimed_by, created_at, started_at, completed_at, scheduled_for`

const activeJobIndex = "jobs_one_active_per_application"

type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{
		pool: pool,
		tm:   tm,
	}
}

func (r *jobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.Job) error {
	const q = `
INSERT INTO jobs (id, application_id, requisition_id, job_type, status, priority, attempts, max_attempts,
                  last_error, claimed_by, created_at, started_at, completed_at, scheduled_for)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.ApplicationID, job.RequisitionID, string(job.JobType), string(job.Status), job.Priority,
		job.Attempts, job.MaxAttempts, job.LastError, job.ClaimedBy, job.CreatedAt, job.StartedAt,
		job.CompletedAt, job.ScheduledFor)
	return mapWriteError(err)
}

func (r *jobRepo) ClaimNext(ctx context.Context, workerID string, now time.Time) (*model.Job, error) {
	var job *model.Job

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// SKIP LOCKED lets concurrent claimers pass over rows another transaction is leasing.
		const fetchQuery = `
SELECT id
  FROM jobs
 WHERE status = 'pending' AND scheduled_for <= $1
 ORDER BY priority DESC, created_at ASC
 LIMIT 1
 FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, fetchQuery, now)
		if err != nil {
			return err
		}
		var id string
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return domain.ErrReadDatabaseRow
		}

		const leaseQuery = `
UPDATE jobs
   SET status = 'running', started_at = $2, claimed_by = $3
 WHERE id = $1
RETURNING ` + jobColumns + `;`

		row, err = pickRow(ctx, r.pool, tx, leaseQuery, id, now, workerID)
		if err != nil {
			return err
		}
		job, err = scanJob(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) UpdateLeased(ctx context.Context, tx repository.Tx, job *model.Job, workerID string) error {
	const q = `
UPDATE jobs
   SET status = $3, attempts = $4, last_error = $5, claimed_by = $6,
       started_at = $7, completed_at = $8, scheduled_for = $9
 WHERE id = $1 AND status = 'running' AND claimed_by = $2;`

	tag, err := execSQL(ctx, r.pool, tx, q,
		job.ID, workerID, string(job.Status), job.Attempts, job.LastError, job.ClaimedBy,
		job.StartedAt, job.CompletedAt, job.ScheduledFor)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLeaseLost
	}
	return nil
}

func (r *jobRepo) ListStale(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Job, error) {
	if tx == nil {
		// row locks are useless outside a transaction
		return nil, domain.ErrInvalidExecContext
	}
	if limit <= 0 {
		limit = 100
	}
	q := `
SELECT ` + jobColumns + `
  FROM jobs
 WHERE status = 'running' AND started_at < $1
 ORDER BY started_at ASC
 LIMIT $2
 FOR UPDATE SKIP LOCKED;`
	return r.queryJobs(ctx, tx, q, cutoff, limit)
}

func (r *jobRepo) Requeue(ctx context.Context, tx repository.Tx, id string, now time.Time) (*model.Job, error) {
	q := `
UPDATE jobs
   SET status = 'pending', attempts = 0, scheduled_for = $2,
       started_at = NULL, completed_at = NULL, claimed_by = ''
 WHERE id = $1 AND status IN ('dead', 'failed')
RETURNING ` + jobColumns + `;`

	row, err := pickRow(ctx, r.pool, tx, q, id, now)
	if err != nil {
		return nil, err
	}
	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if mapped := mapWriteError(err); errors.Is(mapped, domain.ErrActiveJobExists) {
		return nil, mapped
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	// distinguish "no such job" from "job not in a retryable status"
	if _, ferr := r.FindByID(ctx, tx, id); ferr != nil {
		return nil, ferr
	}
	return nil, domain.ErrJobNotRetryable
}

func (r *jobRepo) ListByStatus(ctx context.Context, tx repository.Tx, status *model.JobStatus, offset, limit int) ([]*model.Job, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if status == nil {
		q := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC, id DESC OFFSET $1 LIMIT $2;`
		return r.queryJobs(ctx, tx, q, offset, limit)
	}
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1 ORDER BY created_at DESC, id DESC OFFSET $2 LIMIT $3;`
	return r.queryJobs(ctx, tx, q, string(*status), offset, limit)
}

func (r *jobRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.JobStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM jobs GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.JobStatus]int, len(model.AllJobStatuses))
	for _, st := range model.AllJobStatuses {
		out[st] = 0
	}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[model.JobStatus(st)] = n
	}
	return out, rows.Err()
}

func (r *jobRepo) HasActiveSync(ctx context.Context, tx repository.Tx, requisitionID string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM jobs
   WHERE job_type = 'sync' AND requisition_id = $1 AND status IN ('pending', 'running')
);`
	row, err := pickRow(ctx, r.pool, tx, q, requisitionID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *jobRepo) DeleteByStatus(ctx context.Context, tx repository.Tx, status model.JobStatus) (int64, error) {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM jobs WHERE status = $1;`, string(status))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *jobRepo) DeleteAll(ctx context.Context, tx repository.Tx) (int64, error) {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM jobs;`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// --- helpers ---

func (r *jobRepo) queryJobs(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Job, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j         model.Job
		jobType   string
		status    string
		startedAt *time.Time
		doneAt    *time.Time
	)
	err := row.Scan(
		&j.ID, &j.ApplicationID, &j.RequisitionID, &jobType, &status, &j.Priority, &j.Attempts, &j.MaxAttempts,
		&j.LastError, &j.ClaimedBy, &j.CreatedAt, &startedAt, &doneAt, &j.ScheduledFor,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, pgErr
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.JobType = model.JobType(jobType)
	j.Status = model.JobStatus(status)
	j.StartedAt = startedAt
	j.CompletedAt = doneAt
	return &j, nil
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		if pgErr.ConstraintName == activeJobIndex {
			return domain.ErrActiveJobExists
		}
		return domain.ErrAlreadyExists
	case "23503":
		// owning application or requisition does not exist
		return domain.ErrNotFound
	}
	return err
}

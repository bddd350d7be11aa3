package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/domain/ports/repository"
)

var _ repository.ApplicationRepository = (*applicationRepo)(nil)

const applicationColumns = `id, requisition_id, external_id, candidate_name, candidate_email, status, failed_from,
       needs_review, review_reason, resume_key, interview_token, interview_sent_at, report_document_id,
       created_at, updated_at`

type applicationRepo struct {
	pool *pgxpool.Pool
}

func NewApplicationRepo(pool *pgxpool.Pool) *applicationRepo {
	return &applicationRepo{pool: pool}
}

func (r *applicationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Application, error) {
	q := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanApplication(row)
}

func (r *applicationRepo) InsertDiscovered(ctx context.Context, tx repository.Tx, a *model.Application) (bool, error) {
	const q = `
INSERT INTO applications (id, requisition_id, external_id, candidate_name, candidate_email, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (requisition_id, external_id) DO NOTHING;`

	tag, err := execSQL(ctx, r.pool, tx, q,
		a.ID, a.RequisitionID, a.ExternalID, a.CandidateName, a.CandidateEmail, string(a.Status), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return false, mapWriteError(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *applicationRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, from, to model.ApplicationStatus) error {
	const q = `UPDATE applications SET status = $3, updated_at = now() WHERE id = $1 AND status = $2;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOr(ctx, tx, id, domain.ErrIllegalTransition)
	}
	return nil
}

func (r *applicationRepo) MarkFailed(ctx context.Context, tx repository.Tx, id string, from model.ApplicationStatus, reason string) error {
	const q = `
UPDATE applications
   SET status = 'failed', failed_from = $2, needs_review = TRUE, review_reason = $3, updated_at = now()
 WHERE id = $1 AND status = $2;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, string(from), reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOr(ctx, tx, id, domain.ErrIllegalTransition)
	}
	return nil
}

func (r *applicationRepo) Reopen(ctx context.Context, tx repository.Tx, id string) error {
	const q = `
UPDATE applications
   SET status = CASE WHEN status = 'failed' AND failed_from <> '' THEN failed_from ELSE status END,
       failed_from = '', needs_review = FALSE, review_reason = '', updated_at = now()
 WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *applicationRepo) Flag(ctx context.Context, tx repository.Tx, id, reason string) error {
	const q = `UPDATE applications SET needs_review = TRUE, review_reason = $2, updated_at = now() WHERE id = $1;`
	return r.execOne(ctx, tx, q, id, reason)
}

func (r *applicationRepo) SetResumeKey(ctx context.Context, tx repository.Tx, id, key string) error {
	const q = `UPDATE applications SET resume_key = $2, updated_at = now() WHERE id = $1;`
	return r.execOne(ctx, tx, q, id, key)
}

func (r *applicationRepo) SetInterviewInvite(ctx context.Context, tx repository.Tx, id, token string, sentAt time.Time) error {
	const q = `UPDATE applications SET interview_token = $2, interview_sent_at = $3, updated_at = now() WHERE id = $1;`
	return r.execOne(ctx, tx, q, id, token, sentAt)
}

func (r *applicationRepo) SetReportDocument(ctx context.Context, tx repository.Tx, id, documentID string) error {
	const q = `UPDATE applications SET report_document_id = $2, updated_at = now() WHERE id = $1;`
	return r.execOne(ctx, tx, q, id, documentID)
}

func (r *applicationRepo) ListFlagged(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Application, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := `SELECT ` + applicationColumns + ` FROM applications WHERE needs_review ORDER BY updated_at DESC OFFSET $1 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- helpers ---

func (r *applicationRepo) execOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) error {
	tag, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *applicationRepo) missingOr(ctx context.Context, tx repository.Tx, id string, err error) error {
	if _, ferr := r.FindByID(ctx, tx, id); errors.Is(ferr, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func scanApplication(row pgx.Row) (*model.Application, error) {
	var (
		a          model.Application
		status     string
		failedFrom string
	)
	err := row.Scan(
		&a.ID, &a.RequisitionID, &a.ExternalID, &a.CandidateName, &a.CandidateEmail, &status, &failedFrom,
		&a.NeedsReview, &a.ReviewReason, &a.ResumeKey, &a.InterviewToken, &a.InterviewSentAt, &a.ReportDocumentID,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	a.Status = model.ApplicationStatus(status)
	a.FailedFrom = model.ApplicationStatus(failedFrom)
	return &a, nil
}

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

var _ repository.RequisitionRepository = (*requisitionRepo)(nil)

type requisitionRepo struct {
	pool *pgxpool.Pool
}

func NewRequisitionRepo(pool *pgxpool.Pool) *requisitionRepo {
	return &requisitionRepo{pool: pool}
}

func (r *requisitionRepo) Save(ctx context.Context, tx repository.Tx, req *model.Requisition) error {
	const q = `
INSERT INTO requisitions (id, external_id, title, active, auto_send_interview, auto_send_min_score, last_synced_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title,
  active = EXCLUDED.active,
  auto_send_interview = EXCLUDED.auto_send_interview,
  auto_send_min_score = EXCLUDED.auto_send_min_score;`

	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		req.ID, req.ExternalID, req.Title, req.Active, req.AutoSendInterview, req.AutoSendMinScore,
		req.LastSyncedAt, req.CreatedAt)
	return mapWriteError(err)
}

func (r *requisitionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Requisition, error) {
	const q = `
SELECT id, external_id, title, active, auto_send_interview, auto_send_min_score, last_synced_at, created_at
  FROM requisitions WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanRequisition(row)
}

func (r *requisitionRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Requisition, error) {
	const q = `
SELECT id, external_id, title, active, auto_send_interview, auto_send_min_score, last_synced_at, created_at
  FROM requisitions WHERE active ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Requisition
	for rows.Next() {
		req, err := scanRequisition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *requisitionRepo) MarkSynced(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	tag, err := execSQL(ctx, r.pool, tx, `UPDATE requisitions SET last_synced_at = $2 WHERE id = $1;`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanRequisition(row pgx.Row) (*model.Requisition, error) {
	var req model.Requisition
	err := row.Scan(&req.ID, &req.ExternalID, &req.Title, &req.Active, &req.AutoSendInterview,
		&req.AutoSendMinScore, &req.LastSyncedAt, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &req, nil
}

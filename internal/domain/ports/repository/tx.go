package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres). Repositories accept nil
// (NoTX) for the non-transactional path.
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one database transaction.
//
// The pipeline relies on it to apply a stage outcome atomically: finishing the job, advancing the
// application status and enqueueing the next stage either all happen or none do.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx Tx) error {
//		if err := jobs.UpdateLeased(ctx, tx, job, workerID); err != nil {
//			return err
//		}
//		return jobs.Insert(ctx, tx, next)
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

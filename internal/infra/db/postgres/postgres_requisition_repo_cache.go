package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/domain/ports/repository"
	"candidate-screening/internal/infra/metrics"
	red "candidate-screening/internal/infra/redis"
)

var _ repository.RequisitionRepository = (*requisitionRepoCacheDecorator)(nil)

// requisitionRepoCacheDecorator serves FindByID from Redis. Every job's Begin loads its
// requisition, so the row is read far more often than it changes.
type requisitionRepoCacheDecorator struct {
	inner repository.RequisitionRepository
	cache red.Cache
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewRequisitionRepoCacheDecorator(inner repository.RequisitionRepository, cache red.Cache, ttl time.Duration, logger *zerolog.Logger) repository.RequisitionRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &requisitionRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: logger}
}

func requisitionKey(id string) string { return "requisition:" + id }

func (d *requisitionRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Requisition, error) {
	// inside a transaction the caller wants the row as the transaction sees it
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}

	key := requisitionKey(id)
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		var r model.Requisition
		if json.Unmarshal([]byte(val), &r) == nil {
			metrics.IncCacheRequest("requisition", "hit")
			return &r, nil
		}
		metrics.IncCacheRequest("requisition", "error")
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncCacheRequest("requisition", "miss")
	default:
		metrics.IncCacheRequest("requisition", "error")
		d.log.Warn().Err(err).Str("key", key).Msg("requisition cache read failed")
	}

	r, err := d.inner.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(r); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Str("key", key).Msg("requisition cache write failed")
		}
	}
	return r, nil
}

func (d *requisitionRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, r *model.Requisition) error {
	if err := d.inner.Save(ctx, tx, r); err != nil {
		return err
	}
	d.invalidate(ctx, r.ID)
	return nil
}

func (d *requisitionRepoCacheDecorator) MarkSynced(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	if err := d.inner.MarkSynced(ctx, tx, id, at); err != nil {
		return err
	}
	d.invalidate(ctx, id)
	return nil
}

func (d *requisitionRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Requisition, error) {
	return d.inner.ListActive(ctx, tx)
}

func (d *requisitionRepoCacheDecorator) invalidate(ctx context.Context, id string) {
	if err := d.cache.Del(ctx, requisitionKey(id)); err != nil {
		d.log.Warn().Err(err).Str("requisition_id", id).Msg("requisition cache invalidation failed")
	}
}

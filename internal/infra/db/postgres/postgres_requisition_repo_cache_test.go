//go:build !integration

package postgres

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/domain/ports/repository"
)

func TestRequisitionRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	req := &model.Requisition{ID: "req-1", ExternalID: "EXT-1", Active: true, AutoSendMinScore: 70}

	newInner := func(calls *int) *mockInnerReqRepo {
		return &mockInnerReqRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Requisition, error) {
				*calls++
				cp := *req
				return &cp, nil
			},
			SaveFunc:       func(ctx context.Context, tx repository.Tx, r *model.Requisition) error { return nil },
			MarkSyncedFunc: func(ctx context.Context, tx repository.Tx, id string, at time.Time) error { return nil },
		}
	}

	t.Run("second FindByID is served from cache", func(t *testing.T) {
		calls := 0
		cache := newMemCache()
		d := NewRequisitionRepoCacheDecorator(newInner(&calls), cache, time.Minute, &logger)

		for i := 0; i < 2; i++ {
			got, err := d.FindByID(ctx, nil, "req-1")
			if err != nil {
				t.Fatal(err)
			}
			if got.ExternalID != "EXT-1" || got.AutoSendMinScore != 70 {
				t.Fatalf("unexpected requisition %+v", got)
			}
		}
		if calls != 1 {
			t.Errorf("inner repo should be hit once, got %d", calls)
		}
	})

	t.Run("reads inside a transaction bypass the cache", func(t *testing.T) {
		calls := 0
		cache := newMemCache()
		d := NewRequisitionRepoCacheDecorator(newInner(&calls), cache, time.Minute, &logger)
		_, _ = d.FindByID(ctx, nil, "req-1")
		if _, err := d.FindByID(ctx, struct{}{}, "req-1"); err != nil {
			t.Fatal(err)
		}
		if calls != 2 {
			t.Errorf("expected the transactional read to reach the database, calls=%d", calls)
		}
	})

	t.Run("cache errors fall back to the database", func(t *testing.T) {
		calls := 0
		cache := newMemCache()
		cache.getErr = errors.New("redis down")
		d := NewRequisitionRepoCacheDecorator(newInner(&calls), cache, time.Minute, &logger)
		if _, err := d.FindByID(ctx, nil, "req-1"); err != nil {
			t.Fatal(err)
		}
		if calls != 1 {
			t.Errorf("expected a database read, calls=%d", calls)
		}
	})

	t.Run("writes invalidate", func(t *testing.T) {
		calls := 0
		cache := newMemCache()
		d := NewRequisitionRepoCacheDecorator(newInner(&calls), cache, time.Minute, &logger)
		_, _ = d.FindByID(ctx, nil, "req-1")

		if err := d.MarkSynced(ctx, nil, "req-1", time.Now()); err != nil {
			t.Fatal(err)
		}
		if err := d.Save(ctx, nil, req); err != nil {
			t.Fatal(err)
		}
		if len(cache.deleted) != 2 || cache.deleted[0] != "requisition:req-1" {
			t.Fatalf("unexpected invalidations %v", cache.deleted)
		}
		_, _ = d.FindByID(ctx, nil, "req-1")
		if calls != 2 {
			t.Errorf("expected a fresh read after invalidation, calls=%d", calls)
		}
	})

	t.Run("failed write leaves the cache alone", func(t *testing.T) {
		calls := 0
		inner := newInner(&calls)
		inner.SaveFunc = func(ctx context.Context, tx repository.Tx, r *model.Requisition) error { return errors.New("boom") }
		cache := newMemCache()
		d := NewRequisitionRepoCacheDecorator(inner, cache, time.Minute, &logger)
		if err := d.Save(ctx, nil, req); err == nil {
			t.Fatal("expected error")
		}
		if len(cache.deleted) != 0 {
			t.Errorf("unexpected invalidation %v", cache.deleted)
		}
	})
}

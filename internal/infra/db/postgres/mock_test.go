//go:build !integration

package postgres

import (
	"context"
	"sync"
	"time"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/domain/ports/repository"
	red "candidate-screening/internal/infra/redis"
)

// --- Mocks for cache decorator tests ---

// mockInnerReqRepo mocks the database repository the requisition decorator wraps.
type mockInnerReqRepo struct {
	SaveFunc       func(ctx context.Context, tx repository.Tx, r *model.Requisition) error
	FindByIDFunc   func(ctx context.Context, tx repository.Tx, id string) (*model.Requisition, error)
	ListActiveFunc func(ctx context.Context, tx repository.Tx) ([]*model.Requisition, error)
	MarkSyncedFunc func(ctx context.Context, tx repository.Tx, id string, at time.Time) error
}

func (m *mockInnerReqRepo) Save(ctx context.Context, tx repository.Tx, r *model.Requisition) error {
	return m.SaveFunc(ctx, tx, r)
}
func (m *mockInnerReqRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Requisition, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerReqRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Requisition, error) {
	return m.ListActiveFunc(ctx, tx)
}
func (m *mockInnerReqRepo) MarkSynced(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	return m.MarkSyncedFunc(ctx, tx, id, at)
}

// memCache is an in-memory red.Cache.
type memCache struct {
	mu      sync.Mutex
	data    map[string]string
	deleted []string
	getErr  error
}

var _ red.Cache = (*memCache)(nil)

func newMemCache() *memCache { return &memCache{data: map[string]string{}} }

func (c *memCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", c.getErr
	}
	v, ok := c.data[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		c.data[key] = string(v)
	case string:
		c.data[key] = v
	}
	return nil
}

func (c *memCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

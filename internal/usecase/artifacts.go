// File: internal/usecase/artifacts.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/ports/repository"
)

// artifactIO wraps the store with a per-call timeout and precondition-aware errors.
type artifactIO struct {
	store   repository.ArtifactStore
	timeout time.Duration
}

// require loads an artifact that a stage cannot run without. Absence is permanent.
func (a artifactIO) require(ctx context.Context, key string) ([]byte, error) {
	b, err := call(ctx, a.timeout, func(ctx context.Context) ([]byte, error) { return a.store.Get(ctx, key) })
	if err != nil {
		if errors.Is(err, domain.ErrArtifactMissing) || errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Permanent("load artifact", fmt.Errorf("%w: %s", domain.ErrArtifactMissing, key))
		}
		return nil, transientUnlessClassified("load artifact", err)
	}
	return b, nil
}

func (a artifactIO) exists(ctx context.Context, key string) (bool, error) {
	ok, err := call(ctx, a.timeout, func(ctx context.Context) (bool, error) { return a.store.Exists(ctx, key) })
	if err != nil {
		return false, transientUnlessClassified("check artifact", err)
	}
	return ok, nil
}

func (a artifactIO) put(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := call(ctx, a.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.store.Put(ctx, key, content, contentType)
	})
	if err != nil {
		return transientUnlessClassified("store artifact", err)
	}
	return nil
}

func (a artifactIO) requireJSON(ctx context.Context, key string, v interface{}) error {
	b, err := a.require(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return domain.Permanent("decode artifact", fmt.Errorf("%w: %s: %v", domain.ErrSchemaViolation, key, err))
	}
	return nil
}

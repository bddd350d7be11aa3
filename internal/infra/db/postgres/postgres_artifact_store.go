package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/ports/repository"
)

var _ repository.ArtifactStore = (*artifactStore)(nil)

// Sealer encrypts artifact content at rest. The artifact key is passed as associated data.
type Sealer interface {
	Seal(plaintext, aad []byte) ([]byte, error)
	Open(sealed, aad []byte) ([]byte, error)
}

// artifactStore keeps pipeline artifacts in the artifacts table, addressed by path-like keys.
type artifactStore struct {
	pool   *pgxpool.Pool
	sealer Sealer
}

func NewArtifactStore(pool *pgxpool.Pool) *artifactStore {
	return &artifactStore{pool: pool}
}

// WithEncryption seals every artifact written from now on. Rows stored in plaintext stay readable.
func (s *artifactStore) WithEncryption(sealer Sealer) *artifactStore {
	s.sealer = sealer
	return s
}

func (s *artifactStore) Put(ctx context.Context, key string, content []byte, contentType string) error {
	if key == "" {
		return domain.ErrInvalidArgument
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	// checksum and size describe the plaintext
	sum := sha256.Sum256(content)
	size := len(content)
	stored := content
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(content, []byte(key))
		if err != nil {
			return fmt.Errorf("seal artifact %s: %w", key, err)
		}
		stored = sealed
	}
	const q = `
INSERT INTO artifacts (key, content, content_type, sha256, size_bytes, encrypted, updated_at)
VALUES ($1,$2,$3,$4,$5,$6, now())
ON CONFLICT (key) DO UPDATE SET
  content = EXCLUDED.content,
  content_type = EXCLUDED.content_type,
  sha256 = EXCLUDED.sha256,
  size_bytes = EXCLUDED.size_bytes,
  encrypted = EXCLUDED.encrypted,
  updated_at = now();`
	_, err := execSQL(ctx, s.pool, nil, q, key, stored, contentType, hex.EncodeToString(sum[:]), size, s.sealer != nil)
	return err
}

func (s *artifactStore) Get(ctx context.Context, key string) ([]byte, error) {
	row, err := pickRow(ctx, s.pool, nil, `SELECT content, encrypted FROM artifacts WHERE key = $1;`, key)
	if err != nil {
		return nil, err
	}
	var (
		content   []byte
		encrypted bool
	)
	if err := row.Scan(&content, &encrypted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrArtifactMissing
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if !encrypted {
		return content, nil
	}
	if s.sealer == nil {
		return nil, domain.Fatal("artifacts", fmt.Errorf("%w: %s is encrypted and no key is configured", domain.ErrMissingCredentials, key))
	}
	plain, err := s.sealer.Open(content, []byte(key))
	if err != nil {
		return nil, domain.Permanent("artifacts", fmt.Errorf("open artifact %s: %w", key, err))
	}
	return plain, nil
}

func (s *artifactStore) Exists(ctx context.Context, key string) (bool, error) {
	row, err := pickRow(ctx, s.pool, nil, `SELECT EXISTS (SELECT 1 FROM artifacts WHERE key = $1);`, key)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return ok, nil
}

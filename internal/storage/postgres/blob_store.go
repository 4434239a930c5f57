package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

// BlobStore хранит снимки состояния в таблице kv_blobs.
type BlobStore struct {
	db *sql.DB
}

// NewBlobStore создаёт BlobStore поверх подключения Store.
func NewBlobStore(store *Store) *BlobStore {
	return &BlobStore{db: store.DB()}
}

func (s *BlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM kv_blobs WHERE key = $1`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBlobNotFound, key)
		}
		return nil, fmt.Errorf("load blob %s: %w", key, err)
	}
	return data, nil
}

func (s *BlobStore) Save(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_blobs (key, data, updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (key) DO UPDATE
		SET data = EXCLUDED.data,
		    updated_at = EXCLUDED.updated_at
	`, key, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("save blob %s: %w", key, err)
	}
	return nil
}

var _ domain.BlobStore = (*BlobStore)(nil)

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

// SnapshotStore хранит снимки корзин в таблице cart_snapshots.
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore создаёт PostgreSQL-реализацию SnapshotStore.
func NewSnapshotStore(store *Store) *SnapshotStore {
	return &SnapshotStore{db: store.DB()}
}

// Load возвращает снимок или ErrSnapshotNotFound.
func (s *SnapshotStore) Load(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data
		FROM cart_snapshots
		WHERE snapshot_key = $1
	`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("select cart snapshot: %w", err)
	}

	return data, nil
}

// Save перезаписывает снимок целиком (upsert по ключу).
func (s *SnapshotStore) Save(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_snapshots (snapshot_key, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (snapshot_key) DO UPDATE
		SET data = EXCLUDED.data,
		    updated_at = EXCLUDED.updated_at
	`, key, data); err != nil {
		return fmt.Errorf("upsert cart snapshot: %w", err)
	}

	return nil
}

// Delete удаляет снимок.
func (s *SnapshotStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_snapshots WHERE snapshot_key = $1`, key); err != nil {
		return fmt.Errorf("delete cart snapshot: %w", err)
	}

	return nil
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

// SnapshotStore — in-memory key-value хранилище снимков корзины.
type SnapshotStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewSnapshotStore создаёт пустое in-memory хранилище снимков.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{items: make(map[string][]byte)}
}

// Load возвращает копию снимка или ErrSnapshotNotFound.
func (s *SnapshotStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.items[key]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return append([]byte(nil), data...), nil
}

// Save перезаписывает снимок по ключу.
func (s *SnapshotStore) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = append([]byte(nil), data...)
	return nil
}

// Delete удаляет снимок.
func (s *SnapshotStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Len возвращает количество сохранённых снимков (используется в тестах и health).
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

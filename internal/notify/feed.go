package notify

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

// DefaultFeedCapacity — сколько последних уведомлений хранится на сессию.
const DefaultFeedCapacity = 20

// Feed — область уведомлений: последние сообщения каждой сессии,
// от старых к новым. Уведомления без сессии отбрасываются.
type Feed struct {
	mu       sync.Mutex
	capacity int
	sessions map[string][]domain.Notification
}

// NewFeed создаёт Feed. capacity <= 0 — DefaultFeedCapacity.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultFeedCapacity
	}
	return &Feed{
		capacity: capacity,
		sessions: make(map[string][]domain.Notification),
	}
}

// Notify добавляет уведомление в ленту сессии из контекста.
func (f *Feed) Notify(ctx context.Context, note domain.Notification) {
	sessionID := SessionFromContext(ctx)
	if sessionID == "" {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	notes := append(f.sessions[sessionID], note)
	if len(notes) > f.capacity {
		notes = append([]domain.Notification(nil), notes[len(notes)-f.capacity:]...)
	}
	f.sessions[sessionID] = notes
}

// List возвращает копию ленты сессии.
func (f *Feed) List(sessionID string) []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Notification{}, f.sessions[sessionID]...)
}

// Dismiss очищает ленту сессии.
func (f *Feed) Dismiss(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionID)
}

var _ domain.Notifier = (*Feed)(nil)

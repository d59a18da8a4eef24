package memory

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

const defaultOutboxPull = 100

type outboxStatus uint8

const (
	outboxPending outboxStatus = iota
	outboxSent
	outboxFailed
)

type outboxEntry struct {
	msg      domain.OutboxMessage
	status   outboxStatus
	attempts int
	queued   time.Time
}

// OutboxRepository держит transactional outbox в памяти. Порядок постановки
// хранится в срезе order, поэтому PullPending не сортирует.
type OutboxRepository struct {
	mu      sync.RWMutex
	entries map[string]*outboxEntry
	order   []string
	now     func() time.Time
}

// NewOutboxRepository создаёт пустой outbox.
func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{
		entries: make(map[string]*outboxEntry),
		now:     time.Now,
	}
}

// Enqueue ставит сообщение в очередь; без ID генерируется uuid.
func (r *OutboxRepository) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.EventType == "" {
		return domain.OutboxMessage{}, domain.ErrOutboxEventTypeRequired
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if len(msg.Payload) == 0 {
		msg.Payload = []byte("null")
	}
	msg.Payload = slices.Clone(msg.Payload)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[msg.ID]; !exists {
		r.order = append(r.order, msg.ID)
	}
	r.entries[msg.ID] = &outboxEntry{msg: msg, status: outboxPending, queued: r.now().UTC()}
	return msg, nil
}

// PullPending отдаёт до limit pending-сообщений в порядке постановки; limit <= 0 — 100.
func (r *OutboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxPull
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending []domain.OutboxMessage
	r.eachPending(func(e *outboxEntry) bool {
		pending = append(pending, e.msg)
		return len(pending) < limit
	})
	return pending, nil
}

// Stats считает pending-сообщения и время самого старого из них.
func (r *OutboxRepository) Stats() (domain.OutboxStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats domain.OutboxStats
	r.eachPending(func(e *outboxEntry) bool {
		if stats.PendingCount == 0 {
			stats.OldestPendingAt = e.queued
		}
		stats.PendingCount++
		return true
	})
	return stats, nil
}

// MarkSent фиксирует успешную публикацию.
func (r *OutboxRepository) MarkSent(id string) error {
	return r.transition(id, outboxSent)
}

// MarkFailed фиксирует исчерпание попыток.
func (r *OutboxRepository) MarkFailed(id string) error {
	return r.transition(id, outboxFailed)
}

// AllPending возвращает все pending-сообщения; используется в тестах сервисов.
func (r *OutboxRepository) AllPending() []domain.OutboxMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending []domain.OutboxMessage
	r.eachPending(func(e *outboxEntry) bool {
		pending = append(pending, e.msg)
		return true
	})
	return pending
}

func (r *OutboxRepository) transition(id string, next outboxStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	entry.status = next
	entry.attempts++
	return nil
}

// eachPending обходит pending-записи в порядке постановки, пока fn возвращает true.
// Вызывается под блокировкой.
func (r *OutboxRepository) eachPending(fn func(*outboxEntry) bool) {
	for _, id := range r.order {
		entry := r.entries[id]
		if entry.status != outboxPending {
			continue
		}
		if !fn(entry) {
			return
		}
	}
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)

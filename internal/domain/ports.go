package domain

import (
	"context"
	"time"
)

// SnapshotStore — долговременное key-value хранилище снимков корзины.
// Снимок всегда пишется целиком; частичных обновлений нет.
type SnapshotStore interface {
	// Load возвращает снимок по ключу или ErrSnapshotNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save перезаписывает снимок по ключу.
	Save(ctx context.Context, key string, data []byte) error
	// Delete удаляет снимок; отсутствие ключа ошибкой не считается.
	Delete(ctx context.Context, key string) error
}

// ProductCatalog — статический каталог товаров, доступный только на чтение.
type ProductCatalog interface {
	Get(id string) (Product, error)
	List() []Product
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события отслеживания заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// Типы агрегатов и событий, которые попадают в outbox.
const (
	AggregateCart  = "cart"
	AggregateOrder = "order"

	EventCartNotification = "cart.notification"
	EventOrderPlaced      = "order.placed"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

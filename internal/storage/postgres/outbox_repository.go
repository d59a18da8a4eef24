package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

type outboxStatus string

const (
	outboxPending outboxStatus = "pending"
	outboxSent    outboxStatus = "sent"
	outboxFailed  outboxStatus = "failed"
)

const (
	outboxColumns     = `id, aggregate_type, aggregate_id, event_type, payload`
	defaultOutboxPull = 100
)

// OutboxRepository хранит transactional outbox в таблице outbox_messages.
type OutboxRepository struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// NewOutboxRepository создаёт PostgreSQL-реализацию OutboxRepository.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{
		db:    store.DB(),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Enqueue ставит сообщение в очередь со статусом pending.
// Пустой payload сохраняется как JSON null.
func (r *OutboxRepository) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.EventType == "" {
		return domain.OutboxMessage{}, domain.ErrOutboxEventTypeRequired
	}
	if msg.ID == "" {
		msg.ID = r.newID()
	}
	if len(msg.Payload) == 0 {
		msg.Payload = []byte("null")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	stamp := r.now().UTC()
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO outbox_messages (`+outboxColumns+`, status, attempt_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $7)`,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload,
		string(outboxPending), stamp,
	); err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("enqueue outbox %s/%s: %w", msg.AggregateType, msg.EventType, err)
	}
	return msg, nil
}

// PullPending читает до limit сообщений в порядке постановки; limit <= 0 — 100.
func (r *OutboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxPull
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+outboxColumns+` FROM outbox_messages
		 WHERE status = $1
		 ORDER BY created_at ASC, id ASC
		 LIMIT $2`,
		string(outboxPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pull pending outbox: %w", err)
	}
	defer rows.Close()

	var pending []domain.OutboxMessage
	for rows.Next() {
		msg, err := scanOutboxMessage(rows)
		if err != nil {
			return nil, err
		}
		pending = append(pending, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return pending, nil
}

// Stats считает backlog по частичному индексу pending-сообщений.
func (r *OutboxRepository) Stats() (domain.OutboxStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		count  int
		oldest sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(created_at) FROM outbox_messages WHERE status = $1`,
		string(outboxPending),
	).Scan(&count, &oldest)
	if err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox stats: %w", err)
	}

	stats := domain.OutboxStats{PendingCount: count}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}
	return stats, nil
}

// MarkSent фиксирует успешную публикацию.
func (r *OutboxRepository) MarkSent(id string) error {
	return r.transition(id, outboxSent)
}

// MarkFailed фиксирует исчерпание попыток публикации.
func (r *OutboxRepository) MarkFailed(id string) error {
	return r.transition(id, outboxFailed)
}

// transition меняет статус и увеличивает attempt_count; неизвестный id — ErrOutboxPublish.
func (r *OutboxRepository) transition(id string, next outboxStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox_messages
		 SET status = $2, attempt_count = attempt_count + 1, updated_at = $3
		 WHERE id = $1`,
		id, string(next), r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark outbox %s %s: %w", id, next, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("mark outbox %s %s: %w", id, next, err)
	} else if n == 0 {
		return fmt.Errorf("outbox message %s: %w", id, domain.ErrOutboxPublish)
	}
	return nil
}

func scanOutboxMessage(row rowScanner) (domain.OutboxMessage, error) {
	var msg domain.OutboxMessage
	if err := row.Scan(&msg.ID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Payload); err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("scan outbox message: %w", err)
	}
	return msg, nil
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)

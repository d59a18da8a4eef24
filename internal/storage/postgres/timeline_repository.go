package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

const timelineColumns = `order_id, event_type, reason, occurred_at`

// TimelineRepository хранит шаги трекинга в timeline_events.
type TimelineRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewTimelineRepository создаёт PostgreSQL-реализацию TimelineRepository.
func NewTimelineRepository(store *Store) *TimelineRepository {
	return &TimelineRepository{db: store.DB(), now: time.Now}
}

// Append сохраняет шаг; заказ должен существовать (внешний ключ на orders).
func (r *TimelineRepository) Append(event domain.TimelineEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.Occurred.IsZero() {
		event.Occurred = r.now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO timeline_events (`+timelineColumns+`) VALUES ($1,$2,$3,$4)`,
		event.OrderID, event.Type, event.Reason, event.Occurred,
	); err != nil {
		return fmt.Errorf("append timeline event %s for %s: %w", event.Type, event.OrderID, err)
	}

	return nil
}

// List возвращает шаги заказа; при равном времени порядок вставки.
func (r *TimelineRepository) List(orderID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+timelineColumns+` FROM timeline_events WHERE order_id = $1 ORDER BY occurred_at ASC, id ASC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.TimelineEvent, 0, 4)
	for rows.Next() {
		event, err := scanTimelineEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}

	return events, nil
}

func scanTimelineEvent(rows *sql.Rows) (domain.TimelineEvent, error) {
	var event domain.TimelineEvent
	if err := rows.Scan(&event.OrderID, &event.Type, &event.Reason, &event.Occurred); err != nil {
		return domain.TimelineEvent{}, fmt.Errorf("scan timeline event: %w", err)
	}
	event.Occurred = event.Occurred.UTC()
	return event, nil
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)

package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

// deadLetter — содержимое DLQ-записи; исходный payload вложен без изменений.
type deadLetter struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	PublishError   string          `json:"publish_error"`
	Attempts       int             `json:"attempts"`
	DLQPublishedAt time.Time       `json:"dlq_published_at"`
}

func (w *Worker) publishDeadLetter(event domain.OutboxMessage, cause error) error {
	if w.dlq == nil {
		return nil
	}

	payload := json.RawMessage(event.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	data, err := json.Marshal(deadLetter{
		OutboxID:       event.ID,
		AggregateType:  event.AggregateType,
		AggregateID:    event.AggregateID,
		EventType:      event.EventType,
		Payload:        payload,
		PublishError:   cause.Error(),
		Attempts:       w.cfg.MaxAttempts,
		DLQPublishedAt: w.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal dlq payload: %w", err)
	}

	// обёртка сохраняет агрегат, чтобы DLQ-запись шла с тем же ключом
	wrapped := event
	wrapped.Payload = data
	if err := w.dlq.Publish(wrapped); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}

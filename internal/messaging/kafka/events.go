package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	// Cart события
	EventTypeCartNotification EventType = domain.EventCartNotification

	// Order события
	EventTypeOrderPlaced EventType = domain.EventOrderPlaced
)

// Topics для Kafka
const (
	TopicCartEvents      = "artcart.cart.events"
	TopicOrderEvents     = "artcart.order.events"
	TopicDeadLetterQueue = "artcart.dlq" // Dead Letter Queue для failed messages
)

// ConsumerGroupNotifications — группа, которая ретранслирует уведомления корзины в ленту.
const ConsumerGroupNotifications = "artcart-notifications"

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"

	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
)

// TopicForAggregate возвращает topic по типу агрегата outbox-сообщения.
func TopicForAggregate(aggregateType string) string {
	switch aggregateType {
	case domain.AggregateCart:
		return TopicCartEvents
	default:
		return TopicOrderEvents
	}
}

// Envelope — обёртка, в которой outbox-сообщения уходят в Kafka.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     EventType       `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// DeadLetter — запись, которую Consumer кладёт в DLQ после исчерпания попыток.
type DeadLetter struct {
	OriginalTopic     string    `json:"original_topic"`
	OriginalPartition int32     `json:"original_partition"`
	OriginalOffset    int64     `json:"original_offset"`
	OriginalKey       string    `json:"original_key"`
	OriginalValue     string    `json:"original_value"`
	ErrorMessage      string    `json:"error_message"`
	FailedAt          time.Time `json:"failed_at"`
	RetryCount        int       `json:"retry_count"`
}

// CartEvent — уведомление корзины, прочитанное из topic.
type CartEvent struct {
	EventType EventType
	domain.CartNotificationPayload
}

// OrderEvent — событие оформленного заказа, прочитанное из topic.
type OrderEvent struct {
	EventType EventType
	domain.OrderPlacedPayload
}

// NewEnvelope оборачивает outbox-сообщение.
func NewEnvelope(msg domain.OutboxMessage, publishedAt time.Time) Envelope {
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     EventType(msg.EventType),
		Payload:       payload,
		PublishedAt:   publishedAt,
	}
}

// ParseEnvelope разбирает outbox-обёртку из сообщения.
func ParseEnvelope(message *sarama.ConsumerMessage) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return &envelope, nil
}

// ParseCartEvent разбирает cart.notification; сессия по умолчанию берётся из aggregate_id.
func ParseCartEvent(message *sarama.ConsumerMessage) (*CartEvent, error) {
	event := CartEvent{EventType: EventTypeCartNotification}
	envelope, err := decodePayload(message, event.EventType, &event.CartNotificationPayload)
	if err != nil {
		return nil, err
	}
	if event.SessionID == "" {
		event.SessionID = envelope.AggregateID
	}
	return &event, nil
}

// ParseOrderEvent разбирает order.placed; номер заказа по умолчанию берётся из aggregate_id.
func ParseOrderEvent(message *sarama.ConsumerMessage) (*OrderEvent, error) {
	event := OrderEvent{EventType: EventTypeOrderPlaced}
	envelope, err := decodePayload(message, event.EventType, &event.OrderPlacedPayload)
	if err != nil {
		return nil, err
	}
	if event.OrderID == "" {
		event.OrderID = envelope.AggregateID
	}
	return &event, nil
}

func decodePayload(message *sarama.ConsumerMessage, want EventType, dst any) (*Envelope, error) {
	envelope, err := ParseEnvelope(message)
	if err != nil {
		return nil, err
	}
	if envelope.EventType != want {
		return nil, fmt.Errorf("unexpected event type %q, want %q", envelope.EventType, want)
	}
	if err := json.Unmarshal(envelope.Payload, dst); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", want, err)
	}
	return envelope, nil
}

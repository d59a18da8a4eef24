package kafka

import (
	"errors"
	"time"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

var errPublisherNotReady = errors.New("kafka outbox publisher is not initialized")

// OutboxPublisher отдаёт outbox-сообщения в Kafka в виде Envelope.
type OutboxPublisher struct {
	producer *Producer
	route    func(aggregateType string) string
	now      func() time.Time
}

// NewOutboxPublisher выбирает topic по типу агрегата через TopicForAggregate.
func NewOutboxPublisher(producer *Producer) *OutboxPublisher {
	return &OutboxPublisher{producer: producer, route: TopicForAggregate, now: time.Now}
}

// NewTopicPublisher пишет все сообщения в один topic, например в DLQ.
func NewTopicPublisher(producer *Producer, topic string) *OutboxPublisher {
	return &OutboxPublisher{
		producer: producer,
		route:    func(string) string { return topic },
		now:      time.Now,
	}
}

// Publish реализует domain.OutboxPublisher.
func (p *OutboxPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotReady
	}
	envelope := NewEnvelope(event, p.now().UTC())
	return p.producer.PublishEnvelope(p.route(event.AggregateType), envelope)
}

var _ domain.OutboxPublisher = (*OutboxPublisher)(nil)

package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// ClientID передаётся брокеру, чтобы отличать storefront в логах Kafka.
const ClientID = "artcart-storefront"

// Producer публикует события корзины и заказов.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
	now      func() time.Time
}

func newProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = ClientID
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	// идемпотентный producer требует одного in-flight запроса
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	return config
}

// NewProducer подключается к brokers синхронным producer'ом.
func NewProducer(brokers []string) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, newProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return newProducer(producer), nil
}

func newProducer(producer sarama.SyncProducer) *Producer {
	return &Producer{
		producer: producer,
		logger:   log.WithField("component", "kafka-producer"),
		now:      time.Now,
	}
}

// PublishEvent сериализует event в JSON и отправляет его в topic.
func (p *Producer) PublishEvent(topic string, key string, event interface{}) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.send(topic, key, eventData, nil)
}

// PublishEnvelope отправляет outbox-обёртку. Ключ партиционирования —
// id агрегата (сессия или номер заказа), тип события дублируется в headers.
func (p *Producer) PublishEnvelope(topic string, envelope Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope %s: %w", envelope.ID, err)
	}

	key := envelope.AggregateID
	if key == "" {
		key = envelope.ID
	}

	headers := []sarama.RecordHeader{
		{Key: []byte(HeaderEventType), Value: []byte(envelope.EventType)},
		{Key: []byte(HeaderAggregateType), Value: []byte(envelope.AggregateType)},
	}
	return p.send(topic, key, data, headers)
}

// PublishDeadLetter кладёт запись в DLQ с тем же ключом, что у исходного сообщения.
func (p *Producer) PublishDeadLetter(record DeadLetter) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	headers := []sarama.RecordHeader{
		{Key: []byte(HeaderOriginalTopic), Value: []byte(record.OriginalTopic)},
		{Key: []byte(HeaderErrorMessage), Value: []byte(record.ErrorMessage)},
		{Key: []byte(HeaderFailedAt), Value: []byte(record.FailedAt.Format(time.RFC3339))},
		{Key: []byte(HeaderRetryCount), Value: []byte(strconv.Itoa(record.RetryCount))},
	}
	return p.send(TopicDeadLetterQueue, record.OriginalKey, data, headers)
}

func (p *Producer) send(topic, key string, value []byte, headers []sarama.RecordHeader) error {
	now := time.Now
	if p.now != nil {
		now = p.now
	}

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Headers:   headers,
		Timestamp: now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic": topic,
			"key":   key,
		}).Error("failed to send message to kafka")
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     topic,
		"key":       key,
		"partition": partition,
		"offset":    offset,
	}).Debug("message sent to kafka")

	return nil
}

// Close закрывает producer. Повторный вызов и nil безопасны.
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	p.producer = nil
	return nil
}

package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// DefaultRetryDelay — пауза между повторными попытками обработки сообщения.
const DefaultRetryDelay = 200 * time.Millisecond

const defaultMaxRetries = 3

// MessageHandler обрабатывает сообщение из Kafka
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// ConsumerConfig задаёт подписку consumer group.
type ConsumerConfig struct {
	Brokers    []string
	GroupID    string
	Topics     []string
	MaxRetries int
	RetryDelay time.Duration
	// DLQ принимает сообщения после исчерпания попыток. Без него
	// сообщение остаётся непомеченным и будет прочитано снова.
	DLQ *Producer
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	return c
}

// Consumer читает topics через consumer group и повторяет обработку
// до MaxRetries раз с учётом header x-retry-count.
type Consumer struct {
	group   sarama.ConsumerGroup
	cfg     ConsumerConfig
	handler MessageHandler
	logger  *log.Entry
	now     func() time.Time
	wg      sync.WaitGroup
}

func newConsumerGroupConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = ClientID
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true
	return config
}

// NewConsumer подключает consumer group к brokers.
func NewConsumer(cfg ConsumerConfig, handler MessageHandler) (*Consumer, error) {
	if handler == nil {
		return nil, errors.New("kafka consumer requires a handler")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("kafka consumer requires at least one topic")
	}

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, newConsumerGroupConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	return newConsumer(group, cfg, handler), nil
}

func newConsumer(group sarama.ConsumerGroup, cfg ConsumerConfig, handler MessageHandler) *Consumer {
	cfg = cfg.withDefaults()
	return &Consumer{
		group:   group,
		cfg:     cfg,
		handler: handler,
		logger: log.WithFields(log.Fields{
			"component": "kafka-consumer",
			"group":     cfg.GroupID,
		}),
		now: time.Now,
	}
}

// Start запускает чтение в фоне и возвращается сразу.
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		// Consume завершается на каждом rebalance
		for ctx.Err() == nil {
			if err := c.group.Consume(ctx, c.cfg.Topics, c); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.WithError(err).Error("consume session failed")
			}
		}
	}()
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.WithError(err).Error("consumer error")
		}
	}()

	c.logger.WithField("topics", c.cfg.Topics).Info("kafka consumer started")
	return nil
}

// Stop закрывает группу и ждёт фоновые горутины.
func (c *Consumer) Stop() error {
	if err := c.group.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

// Setup реализует sarama.ConsumerGroupHandler.
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup реализует sarama.ConsumerGroupHandler.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim помечает сообщение только после успешной обработки или записи в DLQ.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			logger := c.logger.WithFields(messageFields(message))
			logger.Debug("received message")

			if err := c.deliver(ctx, message); err != nil {
				logger.WithError(err).Error("message left unacknowledged")
				continue
			}
			session.MarkMessage(message, "")
		}
	}
}

// deliver вызывает handler, пока не кончится бюджет попыток, затем пишет в DLQ.
func (c *Consumer) deliver(ctx context.Context, message *sarama.ConsumerMessage) error {
	previous := retryCount(message)
	attempts := max(c.cfg.MaxRetries-previous, 1)

	err := c.attempt(ctx, message, attempts)
	if err == nil || ctx.Err() != nil {
		return err
	}

	if c.cfg.DLQ == nil {
		return err
	}
	record := c.deadLetter(message, err, previous+attempts)
	if dlqErr := c.cfg.DLQ.PublishDeadLetter(record); dlqErr != nil {
		return fmt.Errorf("failed to send to DLQ: %w", dlqErr)
	}
	c.logger.WithFields(messageFields(message)).WithField("retry_count", record.RetryCount).
		Warn("message moved to DLQ")
	return nil
}

func (c *Consumer) attempt(ctx context.Context, message *sarama.ConsumerMessage, attempts int) error {
	var err error
	for n := 1; n <= attempts; n++ {
		if err = c.handler(ctx, message); err == nil {
			return nil
		}
		if n == attempts {
			break
		}

		c.logger.WithError(err).WithFields(messageFields(message)).WithField("attempt", n).
			Warn("message processing failed, will retry")

		if c.cfg.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}
	}
	return err
}

func (c *Consumer) deadLetter(message *sarama.ConsumerMessage, cause error, retries int) DeadLetter {
	return DeadLetter{
		OriginalTopic:     message.Topic,
		OriginalPartition: message.Partition,
		OriginalOffset:    message.Offset,
		OriginalKey:       string(message.Key),
		OriginalValue:     string(message.Value),
		ErrorMessage:      cause.Error(),
		FailedAt:          c.now().UTC(),
		RetryCount:        retries,
	}
}

// retryCount читает x-retry-count; невалидное значение считается нулём.
func retryCount(message *sarama.ConsumerMessage) int {
	for _, header := range message.Headers {
		if header == nil || string(header.Key) != HeaderRetryCount {
			continue
		}
		if count, err := strconv.Atoi(string(header.Value)); err == nil && count > 0 {
			return count
		}
	}
	return 0
}

func messageFields(message *sarama.ConsumerMessage) log.Fields {
	return log.Fields{
		"topic":     message.Topic,
		"partition": message.Partition,
		"offset":    message.Offset,
	}
}

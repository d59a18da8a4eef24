package app

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
	"github.com/vladislavdragonenkov/artcart/internal/messaging/kafka"
)

const relayMaxRetries = 3

func splitBrokers(brokers string) []string {
	var list []string
	for _, broker := range strings.Split(brokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			list = append(list, broker)
		}
	}
	return list
}

// initKafkaProducer инициализирует Kafka producer если brokers не пустой.
// Возвращает nil, nil если brokers пустой.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := splitBrokers(brokers)
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokerList)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

// startNotificationRelay подписывается на artcart.cart.events и пересылает
// уведомления корзины в sink. Сообщения, которые не удалось обработать, уходят в DLQ.
func startNotificationRelay(ctx context.Context, brokers string, sink domain.Notifier, dlq *kafka.Producer, logger *log.Entry) (*kafka.Consumer, error) {
	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:    splitBrokers(brokers),
		GroupID:    kafka.ConsumerGroupNotifications,
		Topics:     []string{kafka.TopicCartEvents},
		MaxRetries: relayMaxRetries,
		RetryDelay: kafka.DefaultRetryDelay,
		DLQ:        dlq,
	}, kafka.NewCartNotificationHandler(sink))
	if err != nil {
		logger.WithError(err).Warn("failed to create notification relay, feed is attached directly")
		return nil, err
	}
	if err := consumer.Start(ctx); err != nil {
		_ = consumer.Stop()
		return nil, err
	}
	return consumer, nil
}

// closeKafkaProducer закрывает Kafka producer если он не nil.
func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

func stopNotificationRelay(consumer *kafka.Consumer, logger *log.Entry) {
	if consumer == nil {
		return
	}
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop notification relay")
	}
}

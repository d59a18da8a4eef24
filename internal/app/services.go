package app

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/artcart/internal/cart"
	"github.com/vladislavdragonenkov/artcart/internal/catalog"
	"github.com/vladislavdragonenkov/artcart/internal/checkout"
	"github.com/vladislavdragonenkov/artcart/internal/delay"
	"github.com/vladislavdragonenkov/artcart/internal/domain"
	"github.com/vladislavdragonenkov/artcart/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/artcart/internal/metrics"
	"github.com/vladislavdragonenkov/artcart/internal/notify"
	grpcsvc "github.com/vladislavdragonenkov/artcart/internal/service/grpc"
	"github.com/vladislavdragonenkov/artcart/internal/service/outbox"
)

// services — собранные прикладные сервисы.
type services struct {
	registry *cart.Registry
	checkout *checkout.Service
	cart     *grpcsvc.CartService
	worker   *outbox.Worker
}

// notificationRouting описывает, куда уходят уведомления корзины.
type notificationRouting struct {
	// viaOutbox — уведомления пишутся в outbox и публикуются в Kafka.
	viaOutbox bool
	// feedDirect — лента получает уведомления напрямую, без Kafka relay.
	feedDirect bool
}

func buildNotifier(routing notificationRouting, deps *runtimeDependencies, feed *notify.Feed, logger *log.Entry) domain.Notifier {
	notifiers := notify.Multi{notify.NewLogNotifier(logger.WithField("component", "notifications"))}
	if routing.viaOutbox {
		notifiers = append(notifiers, notify.NewOutboxNotifier(deps.outboxRepo, logger))
	}
	if routing.feedDirect {
		notifiers = append(notifiers, feed)
	}
	return notifiers
}

// buildServices собирает корзины, оформление, gRPC-сервис и outbox worker.
// producer == nil означает работу без Kafka: outbox публикуется в лог.
func buildServices(
	cfg Config,
	deps *runtimeDependencies,
	products *catalog.Catalog,
	feed *notify.Feed,
	notifier domain.Notifier,
	producer *kafka.Producer,
	cartMetrics *metrics.CartMetrics,
	logger *log.Entry,
) *services {
	registry := cart.NewRegistry(deps.snapshots,
		cart.WithKey(cfg.CartStorageKey),
		cart.WithNotifier(notifier),
		cart.WithMetrics(cartMetrics),
		cart.WithStockClamp(cfg.ClampToStock),
		cart.WithLogger(logger.WithField("component", "cart")),
	)

	checkoutSvc := checkout.NewService(registry, deps.orderRepo, deps.timelineRepo, deps.outboxRepo,
		checkout.WithNotifier(notifier),
		checkout.WithDelay(delay.Real{}, cfg.CheckoutDelay),
		checkout.WithMetrics(cartMetrics),
		checkout.WithLogger(logger.WithField("component", "checkout")),
	)

	cartService := grpcsvc.NewCartService(registry, products, checkoutSvc, feed, logger.WithField("layer", "grpc"))

	var publisher domain.OutboxPublisher = logPublisher{logger: logger.WithField("component", "outbox-log")}
	workerCfg := outbox.Config{
		PollInterval:   cfg.OutboxPollInterval,
		BatchSize:      cfg.OutboxBatchSize,
		MaxAttempts:    cfg.OutboxMaxAttempts,
		RetryBaseDelay: cfg.OutboxRetryDelay,
	}
	workerOptions := []outbox.Option{outbox.WithLogger(logger.WithField("component", "outbox-worker"))}
	if producer != nil {
		publisher = kafka.NewOutboxPublisher(producer)
		workerOptions = append(workerOptions, outbox.WithDLQPublisher(kafka.NewTopicPublisher(producer, kafka.TopicDeadLetterQueue)))
	}

	return &services{
		registry: registry,
		checkout: checkoutSvc,
		cart:     cartService,
		worker:   outbox.NewWorker(deps.outboxRepo, publisher, workerCfg, workerOptions...),
	}
}

// logPublisher публикует outbox-сообщения в лог, когда Kafka не настроена.
type logPublisher struct {
	logger *log.Entry
}

func (p logPublisher) Publish(event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"outbox_id":    event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
		"payload":      string(event.Payload),
		"published_at": time.Now().UTC().Format(time.RFC3339),
	}).Debug("outbox event")
	return nil
}

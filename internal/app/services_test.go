package app

import (
	"context"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/artcart/internal/catalog"
	"github.com/vladislavdragonenkov/artcart/internal/domain"
	"github.com/vladislavdragonenkov/artcart/internal/metrics"
	"github.com/vladislavdragonenkov/artcart/internal/notify"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CheckoutDelay = 0
	cfg.OutboxPollInterval = 10 * time.Millisecond
	cfg.OutboxRetryDelay = 0
	return cfg
}

func addFirstProduct(t *testing.T, svc *services, products *catalog.Catalog, sessionID string) {
	t.Helper()

	ctx := notify.ContextWithSession(context.Background(), sessionID)
	store, err := svc.registry.Get(ctx, sessionID)
	require.NoError(t, err)

	list := products.List()
	require.NotEmpty(t, list)
	_, err = store.AddLine(ctx, list[0], 1, "")
	require.NoError(t, err)
}

func TestBuildServices_FeedDirect(t *testing.T) {
	logger := log.WithField("test", "services-feed")
	products, err := catalog.Default()
	require.NoError(t, err)

	deps := newMemoryDependencies()
	feed := notify.NewFeed(10)
	notifier := buildNotifier(notificationRouting{feedDirect: true}, deps, feed, logger)
	svc := buildServices(testConfig(), deps, products, feed, notifier, nil, metrics.NewCartMetrics(), logger)

	require.NotNil(t, svc.registry)
	require.NotNil(t, svc.checkout)
	require.NotNil(t, svc.cart)
	require.NotNil(t, svc.worker)

	addFirstProduct(t, svc, products, "s1")

	notes := feed.List("s1")
	require.Len(t, notes, 1)
	require.Equal(t, "Added to cart", notes[0].Title)

	stats, err := deps.outboxRepo.Stats()
	require.NoError(t, err)
	require.Zero(t, stats.PendingCount, "cart notifications bypass the outbox without kafka")
}

func TestBuildServices_ViaOutbox(t *testing.T) {
	logger := log.WithField("test", "services-outbox")
	products, err := catalog.Default()
	require.NoError(t, err)

	deps := newMemoryDependencies()
	feed := notify.NewFeed(10)
	notifier := buildNotifier(notificationRouting{viaOutbox: true}, deps, feed, logger)
	svc := buildServices(testConfig(), deps, products, feed, notifier, nil, metrics.NewCartMetrics(), logger)

	addFirstProduct(t, svc, products, "s2")

	require.Empty(t, feed.List("s2"), "feed is fed by the relay in this mode")

	stats, err := deps.outboxRepo.Stats()
	require.NoError(t, err)
	require.Equal(t, 1, stats.PendingCount)

	processed := svc.worker.Drain(context.Background())
	require.Equal(t, 1, processed)

	stats, err = deps.outboxRepo.Stats()
	require.NoError(t, err)
	require.Zero(t, stats.PendingCount)
}

func TestBuildNotifier_AlwaysLogs(t *testing.T) {
	logger := log.WithField("test", "notifier")
	deps := newMemoryDependencies()

	notifier := buildNotifier(notificationRouting{}, deps, notify.NewFeed(5), logger)
	multi, ok := notifier.(notify.Multi)
	require.True(t, ok)
	require.Len(t, multi, 1)

	notifier = buildNotifier(notificationRouting{viaOutbox: true, feedDirect: true}, deps, notify.NewFeed(5), logger)
	require.Len(t, notifier.(notify.Multi), 3)
}

func TestLogPublisher_Publish(t *testing.T) {
	publisher := logPublisher{logger: log.WithField("test", "log-publisher")}

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "msg-1",
		AggregateType: domain.AggregateCart,
		AggregateID:   "s1",
		EventType:     domain.EventCartNotification,
		Payload:       []byte(`{"title":"Added to cart"}`),
	})
	require.NoError(t, err)
}

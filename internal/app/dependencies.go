package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/artcart/internal/health"
	"github.com/vladislavdragonenkov/artcart/internal/storage/memory"
	"github.com/vladislavdragonenkov/artcart/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/artcart/internal/storage/redis"
	"github.com/vladislavdragonenkov/artcart/internal/version"
)

// runtimeDependencies — хранилища, выбранные по StorageDriver.
type runtimeDependencies struct {
	snapshots      domain.SnapshotStore
	orderRepo      domain.OrderRepository
	timelineRepo   domain.TimelineRepository
	outboxRepo     domain.OutboxRepository
	storageChecker healthcheck.Checker
	closeFn        func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	switch driver {
	case "", StorageDriverMemory:
		logger.Info("используем in-memory хранилище")
		return newMemoryDependencies(), nil
	case StorageDriverPostgres:
		return initPostgresDependencies(ctx, cfg, logger)
	case StorageDriverRedis:
		return initRedisDependencies(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q (use memory|postgres|redis)", cfg.StorageDriver)
	}
}

func newMemoryDependencies() *runtimeDependencies {
	return &runtimeDependencies{
		snapshots:    memory.NewSnapshotStore(),
		orderRepo:    memory.NewOrderRepository(),
		timelineRepo: memory.NewTimelineRepository(),
		outboxRepo:   memory.NewOutboxRepository(),
	}
}

func initPostgresDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	dsn := strings.TrimSpace(cfg.PostgresDSN)
	if dsn == "" {
		return nil, fmt.Errorf("postgres storage requires ARTCART_POSTGRES_DSN")
	}

	store, err := postgres.Open(ctx, dsn,
		postgres.WithPool(postgres.PoolConfig{MaxOpenConns: cfg.PostgresMaxConns}),
		postgres.WithApplicationName(version.Service),
	)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}
	logger.Info("используем PostgreSQL хранилище")

	return &runtimeDependencies{
		snapshots:      postgres.NewSnapshotStore(store),
		orderRepo:      postgres.NewOrderRepository(store),
		timelineRepo:   postgres.NewTimelineRepository(store),
		outboxRepo:     postgres.NewOutboxRepository(store),
		storageChecker: healthcheck.NewPingChecker("postgres", store.Ping, 0),
		closeFn:        store.Close,
	}, nil
}

// initRedisDependencies хранит в Redis только снимки корзин;
// заказы, outbox и timeline остаются в памяти процесса.
func initRedisDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	store, err := redisstore.New(ctx, redisstore.Config{
		URL:      strings.TrimSpace(cfg.RedisURL),
		Addr:     strings.TrimSpace(cfg.RedisAddr),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("open redis: %w", err)
	}
	logger.Info("используем Redis для снимков корзин")

	deps := newMemoryDependencies()
	deps.snapshots = store
	deps.storageChecker = healthcheck.NewPingChecker("redis", store.Ping, 0)
	deps.closeFn = store.Close
	return deps, nil
}

func closeDependencies(deps *runtimeDependencies, logger *log.Entry) {
	if deps == nil || deps.closeFn == nil {
		return
	}
	if err := deps.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}

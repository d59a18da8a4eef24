package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/artcart/internal/app"
	"github.com/vladislavdragonenkov/artcart/internal/version"
)

const (
	envGRPCAddr            = "ARTCART_GRPC_ADDR"
	envMetricsAddr         = "ARTCART_METRICS_ADDR"
	envStorageDriver       = "ARTCART_STORAGE_DRIVER"
	envPostgresDSN         = "ARTCART_POSTGRES_DSN"
	envPostgresAutoMigrate = "ARTCART_POSTGRES_AUTO_MIGRATE"
	envPostgresMaxConns    = "ARTCART_POSTGRES_MAX_CONNS"
	envRedisAddr           = "ARTCART_REDIS_ADDR"
	envRedisURL            = "ARTCART_REDIS_URL"
	envRedisPassword       = "ARTCART_REDIS_PASSWORD"
	envRedisDB             = "ARTCART_REDIS_DB"
	envCartStorageKey      = "ARTCART_CART_STORAGE_KEY"
	envClampToStock        = "ARTCART_CLAMP_TO_STOCK"
	envCheckoutDelay       = "ARTCART_CHECKOUT_DELAY"
	envFeedSize            = "ARTCART_FEED_SIZE"
	envCartIdleTTL         = "ARTCART_CART_IDLE_TTL"
	envOutboxPollInterval  = "ARTCART_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize     = "ARTCART_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts   = "ARTCART_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay    = "ARTCART_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending    = "ARTCART_OUTBOX_MAX_PENDING"
	envKafkaBrokers        = "KAFKA_BROKERS"
	envLogLevel            = "ARTCART_LOG_LEVEL"
)

type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	raw, ok := lookup(envLogLevel)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	level, err := log.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", envLogLevel, err)
	}
	log.SetLevel(level)
	return nil
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не прерывают запуск: остаётся значение по умолчанию и пишется предупреждение.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, raw string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, raw, err))
	}

	setString := func(key string, dst *string, normalize func(string) string) {
		raw, ok := lookup(key)
		if !ok {
			return
		}
		if value := normalize(raw); value != "" {
			*dst = value
		}
	}
	setBool := func(key string, dst *bool) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		value, err := parseBool(raw)
		if err != nil {
			warn(key, raw, err)
			return
		}
		*dst = value
	}
	setInt := func(key string, dst *int, valid func(int) bool, rule string) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		value, err := parseInt(raw, valid, rule)
		if err != nil {
			warn(key, raw, err)
			return
		}
		*dst = value
	}
	setDuration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		value, err := parseDuration(raw, valid, rule)
		if err != nil {
			warn(key, raw, err)
			return
		}
		*dst = value
	}

	positive := func(v int) bool { return v > 0 }
	nonNegative := func(v int) bool { return v >= 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }

	setString(envGRPCAddr, &cfg.GRPCAddr, strings.TrimSpace)
	setString(envMetricsAddr, &cfg.MetricsAddr, strings.TrimSpace)
	setString(envStorageDriver, &cfg.StorageDriver, func(v string) string { return strings.ToLower(strings.TrimSpace(v)) })
	setString(envPostgresDSN, &cfg.PostgresDSN, strings.TrimSpace)
	setBool(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	setInt(envPostgresMaxConns, &cfg.PostgresMaxConns, nonNegative, "must be >= 0")
	setString(envRedisAddr, &cfg.RedisAddr, strings.TrimSpace)
	setString(envRedisURL, &cfg.RedisURL, strings.TrimSpace)
	setString(envRedisPassword, &cfg.RedisPassword, func(v string) string { return v })
	setInt(envRedisDB, &cfg.RedisDB, nonNegative, "must be >= 0")
	setString(envCartStorageKey, &cfg.CartStorageKey, strings.TrimSpace)
	setBool(envClampToStock, &cfg.ClampToStock)
	setDuration(envCheckoutDelay, &cfg.CheckoutDelay, nonNegativeDuration, "must be >= 0")
	setInt(envFeedSize, &cfg.NotificationFeedSize, positive, "must be > 0")
	setDuration(envCartIdleTTL, &cfg.CartIdleTTL, nonNegativeDuration, "must be >= 0")
	setDuration(envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	setInt(envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0")
	setInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0")
	setDuration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0")
	setInt(envOutboxMaxPending, &cfg.OutboxMaxPending, nonNegative, "must be >= 0")
	setString(envKafkaBrokers, &cfg.KafkaBrokers, strings.TrimSpace)

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func main() {
	if err := setupLogger(os.LookupEnv); err != nil {
		log.WithError(err).Warn("неизвестный уровень логирования, используем info")
	}

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(version.Fields()).WithFields(log.Fields{
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"kafka":          cfg.KafkaBrokers != "",
	}).Info("запускаем storefront")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("storefront остановлен")
}

package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Поддерживаемые хранилища корзин.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverRedis    = "redis"
)

// Config описывает настройки запуска приложения.
type Config struct {
	GRPCAddr    string `validate:"required"`
	MetricsAddr string `validate:"required"`

	StorageDriver       string `validate:"oneof=memory postgres redis"`
	PostgresDSN         string `validate:"required_if=StorageDriver postgres"`
	PostgresAutoMigrate bool
	// PostgresMaxConns ограничивает пул соединений; 0 — значение по умолчанию.
	PostgresMaxConns int `validate:"gte=0"`
	RedisAddr        string
	RedisURL         string
	RedisPassword    string
	RedisDB          int `validate:"gte=0"`

	// CartStorageKey — базовый ключ снимков; корзина сессии хранится под "<key>:<session>".
	CartStorageKey       string `validate:"required"`
	ClampToStock         bool
	CheckoutDelay        time.Duration `validate:"gte=0"`
	NotificationFeedSize int           `validate:"gt=0"`
	// CartIdleTTL — через сколько простоя корзина выгружается из памяти; 0 отключает выгрузку.
	CartIdleTTL time.Duration `validate:"gte=0"`

	OutboxPollInterval time.Duration `validate:"gt=0"`
	OutboxBatchSize    int           `validate:"gt=0"`
	OutboxMaxAttempts  int           `validate:"gt=0"`
	OutboxRetryDelay   time.Duration `validate:"gte=0"`
	// OutboxMaxPending — порог backlog, после которого /healthz отвечает degraded; 0 отключает проверку.
	OutboxMaxPending int `validate:"gte=0"`

	// KafkaBrokers — список брокеров через запятую; пустая строка отключает Kafka.
	KafkaBrokers string
}

// DefaultConfig возвращает базовые настройки: in-memory хранилище, без Kafka.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:             ":50051",
		MetricsAddr:          ":9090",
		StorageDriver:        StorageDriverMemory,
		PostgresAutoMigrate:  true,
		CartStorageKey:       "cart",
		CheckoutDelay:        1500 * time.Millisecond,
		NotificationFeedSize: 20,
		CartIdleTTL:          30 * time.Minute,
		OutboxPollInterval:   time.Second,
		OutboxBatchSize:      100,
		OutboxMaxAttempts:    3,
		OutboxRetryDelay:     50 * time.Millisecond,
		OutboxMaxPending:     1000,
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate проверяет настройки до открытия соединений и собирает все нарушения сразу.
func (c Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	problems := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, c.describe(fe))
	}
	return errors.Join(problems...)
}

func (c Config) describe(fe validator.FieldError) error {
	switch fe.StructField() {
	case "StorageDriver":
		return fmt.Errorf("unsupported storage driver %q (use memory|postgres|redis)", c.StorageDriver)
	case "PostgresDSN":
		return errors.New("postgres storage requires ARTCART_POSTGRES_DSN")
	}
	if fe.Param() == "" {
		return fmt.Errorf("%s is %s", fe.StructField(), fe.Tag())
	}
	return fmt.Errorf("%s must be %s %s, got %v", fe.StructField(), fe.Tag(), fe.Param(), fe.Value())
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

var errStoreClosed = errors.New("postgres store is not initialized")

// PoolConfig — лимиты database/sql пула. Нулевые поля берут значения по умолчанию,
// MaxIdleConns не превышает MaxOpenConns.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = defaultMaxOpenConns
	}
	if c.MaxIdleConns <= 0 || c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = defaultConnMaxIdleTime
	}
	return c
}

func (c PoolConfig) apply(db *sql.DB) {
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(c.ConnMaxLifetime)
	db.SetConnMaxIdleTime(c.ConnMaxIdleTime)
}

type options struct {
	pool    PoolConfig
	appName string
}

// Option настраивает Open.
type Option func(*options)

// WithPool задаёт лимиты пула соединений.
func WithPool(pool PoolConfig) Option {
	return func(o *options) { o.pool = pool }
}

// WithApplicationName подписывает соединения в pg_stat_activity.
func WithApplicationName(name string) Option {
	return func(o *options) { o.appName = name }
}

// Store держит пул соединений к PostgreSQL поверх pgx.
type Store struct {
	db *sql.DB
}

// Open разбирает DSN, открывает пул и пингует базу.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if o.appName != "" {
		connConfig.RuntimeParams["application_name"] = o.appName
	}

	db := stdlib.OpenDB(*connConfig)
	o.pool.withDefaults().apply(db)

	store := &Store{db: db}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return store, nil
}

// DB отдаёт пул репозиториям пакета и интеграционным тестам.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет соединение не дольше 5 секунд.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreClosed
	}
	ctx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает пул; nil-хранилище закрывать безопасно.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

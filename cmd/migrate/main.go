package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/artcart/internal/storage/postgres"
)

const (
	envPostgresDSN = "ARTCART_POSTGRES_DSN"
	defaultTimeout = 30 * time.Second
)

type direction string

const (
	directionUp     direction = "up"
	directionDown   direction = "down"
	directionStatus direction = "status"
)

type config struct {
	direction direction
	steps     int
	dsn       string
	timeout   time.Duration
}

// migrator — часть postgres.Store, нужная утилите.
type migrator interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (int64, int, error)
	PendingMigrations(ctx context.Context) ([]string, error)
	Close() error
}

var openStore = func(ctx context.Context, dsn string) (migrator, error) {
	return postgres.Open(ctx, dsn)
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := parseConfig(os.Args[1:], os.LookupEnv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fail("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		fail("%v", err)
	}
}

func parseConfig(args []string, lookup func(string) (string, bool)) (config, error) {
	var (
		cfg config
		dir string
	)

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.StringVar(&dir, "direction", string(directionUp), "migration direction: up|down|status")
	fs.IntVar(&cfg.steps, "steps", 0, "migrations to apply or roll back (up: 0=all, down: 0=1)")
	fs.StringVar(&cfg.dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	fs.DurationVar(&cfg.timeout, "timeout", defaultTimeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	cfg.direction = direction(strings.ToLower(strings.TrimSpace(dir)))
	switch cfg.direction {
	case directionUp, directionStatus:
	case directionDown:
		cfg.steps = max(cfg.steps, 1)
	default:
		return config{}, fmt.Errorf("unsupported direction %q (use up|down|status)", dir)
	}
	if cfg.steps < 0 {
		return config{}, fmt.Errorf("steps must be >= 0, got %d", cfg.steps)
	}

	cfg.dsn = strings.TrimSpace(cfg.dsn)
	if cfg.dsn == "" && lookup != nil {
		env, _ := lookup(envPostgresDSN)
		cfg.dsn = strings.TrimSpace(env)
	}
	if cfg.dsn == "" {
		return config{}, fmt.Errorf("%s (or -dsn) is required", envPostgresDSN)
	}
	if cfg.timeout <= 0 {
		cfg.timeout = defaultTimeout
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	store, err := openStore(ctx, cfg.dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	logger := log.WithFields(log.Fields{"component": "migrate", "direction": cfg.direction})

	switch cfg.direction {
	case directionUp:
		if err := store.MigrateUp(ctx, cfg.steps); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	case directionDown:
		if err := store.MigrateDown(ctx, cfg.steps); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	}

	version, applied, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	logger.WithFields(log.Fields{"version": version, "applied": applied}).Info("migrations done")
	_, _ = fmt.Fprintf(out, "%s: version=%d applied=%d\n", cfg.direction, version, applied)

	if cfg.direction != directionStatus {
		return nil
	}
	pending, err := store.PendingMigrations(ctx)
	if err != nil {
		return fmt.Errorf("pending migrations: %w", err)
	}
	for _, name := range pending {
		_, _ = fmt.Fprintf(out, "  pending: %s\n", name)
	}
	return nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

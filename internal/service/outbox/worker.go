package outbox

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

const (
	defaultPollInterval  = time.Second
	defaultBatchSize     = 100
	defaultMaxAttempts   = 3
	defaultMaxRetryDelay = 2 * time.Second
	maxDrainRounds       = 10
)

// Config — параметры опроса и повторов. Нулевые поля заменяются значениями по умолчанию.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	// RetryBaseDelay — пауза после первой неудачи; 0 отключает паузы.
	RetryBaseDelay time.Duration
	// MaxRetryDelay ограничивает экспоненциальную паузу между попытками.
	MaxRetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryBaseDelay < 0 {
		c.RetryBaseDelay = 0
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = defaultMaxRetryDelay
	}
	return c
}

// Option настраивает Worker.
type Option func(*Worker)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDLQPublisher задаёт publisher, куда уходят сообщения после исчерпания попыток.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(w *Worker) { w.dlq = publisher }
}

// Worker публикует pending-сообщения outbox: уведомления корзины и оформленные заказы.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher
	cfg       Config
	logger    *log.Entry
	now       func() time.Time
}

// NewWorker создаёт outbox worker.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, cfg Config, options ...Option) *Worker {
	w := &Worker{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		logger:    log.WithField("component", "outbox-worker"),
		now:       time.Now,
	}
	for _, option := range options {
		option(w)
	}
	return w
}

func (w *Worker) enabled() bool {
	return w.repo != nil && w.publisher != nil
}

// Run опрашивает outbox каждые PollInterval до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if !w.enabled() {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Drain дочищает backlog при остановке: циклы идут, пока очередь не опустеет
// или не истекут maxDrainRounds.
func (w *Worker) Drain(ctx context.Context) int {
	if !w.enabled() {
		return 0
	}

	total := 0
	for round := 0; round < maxDrainRounds && ctx.Err() == nil; round++ {
		processed := w.ProcessOnce(ctx)
		total += processed
		if processed == 0 {
			break
		}
	}
	if total > 0 {
		w.logger.WithField("processed", total).Info("outbox drained")
	}
	return total
}

// ProcessOnce выполняет один цикл и возвращает число обработанных сообщений.
func (w *Worker) ProcessOnce(ctx context.Context) int {
	if ctx.Err() != nil || !w.enabled() {
		return 0
	}

	w.observeBacklog()
	defer w.observeBacklog()

	events, err := w.repo.PullPending(w.cfg.BatchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return 0
	}

	processed := 0
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		processed++
		w.dispatch(ctx, event)
	}
	return processed
}

// dispatch публикует одно сообщение и фиксирует итог в репозитории.
func (w *Worker) dispatch(ctx context.Context, event domain.OutboxMessage) {
	logger := w.logger.WithFields(log.Fields{
		"outbox_id":  event.ID,
		"event_type": event.EventType,
	})

	err := w.publish(ctx, event)
	if err == nil {
		if markErr := w.repo.MarkSent(event.ID); markErr != nil {
			logger.WithError(markErr).Warn("failed to mark outbox as sent")
		}
		return
	}
	if ctx.Err() != nil {
		// остаётся pending и уйдёт при следующем запуске
		logger.WithError(err).Info("outbox publish interrupted")
		return
	}

	logger.WithError(err).Error("outbox publish failed after retries")
	recordAttempt(event, resultFailed)

	if dlqErr := w.publishDeadLetter(event, err); dlqErr != nil {
		logger.WithError(dlqErr).Warn("failed to publish to DLQ")
		recordAttempt(event, resultDLQFailed)
	}
	if markErr := w.repo.MarkFailed(event.ID); markErr != nil {
		logger.WithError(markErr).Warn("failed to mark outbox as failed")
	}
}

func (w *Worker) publish(ctx context.Context, event domain.OutboxMessage) error {
	var err error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		if err = w.publisher.Publish(event); err == nil {
			recordAttempt(event, resultSent)
			return nil
		}
		recordAttempt(event, resultRetryError)

		if attempt == w.cfg.MaxAttempts {
			break
		}
		if delay := backoff(w.cfg.RetryBaseDelay, w.cfg.MaxRetryDelay, attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("publish failed after %d attempts: %w", w.cfg.MaxAttempts, err)
}

// backoff возвращает паузу после attempt-й неудачи: base, 2*base, 4*base... не больше ceiling.
func backoff(base, ceiling time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay >= ceiling/2 {
			return ceiling
		}
		delay *= 2
	}
	return min(delay, ceiling)
}

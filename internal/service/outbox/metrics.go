package outbox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

const (
	resultSent       = "sent"
	resultRetryError = "retry_error"
	resultFailed     = "failed"
	resultDLQFailed  = "dlq_failed"
)

var (
	publishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artcart_outbox_publish_attempts_total",
		Help: "Outbox publish attempts by event type and result.",
	}, []string{"event_type", "result"})
	pendingRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "artcart_outbox_pending_records",
		Help: "Pending records in the transactional outbox.",
	})
	oldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "artcart_outbox_oldest_pending_age_seconds",
		Help: "Age of the oldest pending outbox record.",
	})
)

func recordAttempt(event domain.OutboxMessage, result string) {
	publishAttempts.WithLabelValues(event.EventType, result).Inc()
}

func (w *Worker) observeBacklog() {
	stats, err := w.repo.Stats()
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}
	pendingRecords.Set(float64(stats.PendingCount))
	oldestPendingAge.Set(pendingAge(stats, w.now()).Seconds())
}

func pendingAge(stats domain.OutboxStats, now time.Time) time.Duration {
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		return 0
	}
	return max(now.Sub(stats.OldestPendingAt), 0)
}

package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения лейбла result для восстановления корзины.
const (
	RestoreResultRestored = "restored"
	RestoreResultEmpty    = "empty"
	RestoreResultCorrupt  = "corrupt"
	RestoreResultError    = "error"
)

// CartMetrics содержит метрики корзины и оформления заказа.
// Все методы безопасны для nil-получателя: метрики опциональны.
type CartMetrics struct {
	// Счётчики операций корзины
	operations    *prometheus.CounterVec
	storageErrors *prometheus.CounterVec
	restores      *prometheus.CounterVec
	notifications prometheus.Counter

	// Checkout
	ordersPlaced     prometheus.Counter
	checkoutFailed   *prometheus.CounterVec
	checkoutDuration prometheus.Histogram

	// Количество корзин, загруженных в память сервиса
	activeCarts prometheus.Gauge
}

// NewCartMetrics создаёт метрики и регистрирует их в DefaultRegisterer.
func NewCartMetrics() *CartMetrics {
	return newCartMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCartMetricsWithRegisterer(registerer prometheus.Registerer) *CartMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CartMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "artcart_cart_operations_total",
			Help: "Total number of cart mutations grouped by operation",
		}, []string{"operation"}),
		storageErrors: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "artcart_cart_storage_errors_total",
			Help: "Total number of cart snapshot storage failures grouped by op",
		}, []string{"op"}),
		restores: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "artcart_cart_restores_total",
			Help: "Total number of cart restores grouped by result",
		}, []string{"result"}),
		notifications: registerCounter(registerer, prometheus.CounterOpts{
			Name: "artcart_cart_notifications_total",
			Help: "Total number of user notifications emitted by the cart",
		}),
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "artcart_orders_placed_total",
			Help: "Total number of simulated orders placed",
		}),
		checkoutFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "artcart_checkout_failed_total",
			Help: "Total number of rejected checkouts grouped by reason",
		}, []string{"reason"}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "artcart_checkout_duration_seconds",
			Help:    "Duration of checkout requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		activeCarts: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "artcart_active_carts",
			Help: "Number of carts currently loaded in memory",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOperation увеличивает счётчик мутаций корзины.
func (m *CartMetrics) RecordOperation(operation string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation).Inc()
}

// RecordStorageError фиксирует сбой чтения/записи снимка.
func (m *CartMetrics) RecordStorageError(op string) {
	if m == nil {
		return
	}
	m.storageErrors.WithLabelValues(op).Inc()
}

// RecordRestore фиксирует результат восстановления корзины.
func (m *CartMetrics) RecordRestore(result string) {
	if m == nil {
		return
	}
	m.restores.WithLabelValues(result).Inc()
}

// RecordNotification увеличивает счётчик уведомлений.
func (m *CartMetrics) RecordNotification() {
	if m == nil {
		return
	}
	m.notifications.Inc()
}

// RecordOrderPlaced увеличивает счётчик оформленных заказов.
func (m *CartMetrics) RecordOrderPlaced() {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
}

// RecordCheckoutFailed фиксирует отклонённое оформление.
func (m *CartMetrics) RecordCheckoutFailed(reason string) {
	if m == nil {
		return
	}
	m.checkoutFailed.WithLabelValues(reason).Inc()
}

// RecordCheckoutDuration записывает время оформления заказа.
func (m *CartMetrics) RecordCheckoutDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.checkoutDuration.Observe(duration.Seconds())
}

// SetActiveCarts выставляет количество корзин в памяти.
func (m *CartMetrics) SetActiveCarts(n int) {
	if m == nil {
		return
	}
	m.activeCarts.Set(float64(n))
}

package health

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

const defaultPingTimeout = 2 * time.Second

// Status — состояние компонента или сервиса в целом.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// severity упорядочивает статусы: итог сервиса — худший из компонентов.
func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Check — результат одной проверки.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response — тело /healthz.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker проверяет один компонент.
type Checker interface {
	Check() Check
}

// Handler собирает проверки хранилища корзин и outbox.
type Handler struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	version  string
	started  time.Time
	now      func() time.Time
}

// NewHandler создаёт handler без проверок.
func NewHandler(version string) *Handler {
	return &Handler{
		checkers: make(map[string]Checker),
		version:  version,
		started:  time.Now(),
		now:      time.Now,
	}
}

// RegisterChecker добавляет или заменяет проверку с именем name.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// evaluate запускает проверки параллельно и возвращает худший статус.
func (h *Handler) evaluate() (Status, map[string]Check) {
	h.mu.RLock()
	checkers := maps.Clone(h.checkers)
	h.mu.RUnlock()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]Check, len(checkers))
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			check := checker.Check()
			mu.Lock()
			checks[name] = check
			mu.Unlock()
		}()
	}
	wg.Wait()

	overall := StatusHealthy
	for _, check := range checks {
		if check.Status.severity() > overall.severity() {
			overall = check.Status
		}
	}
	return overall, checks
}

// ServeHTTP отдаёт JSON-отчёт; 503 только при unhealthy, degraded отвечает 200.
func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	overall, checks := h.evaluate()
	now := h.now()

	code := http.StatusOK
	if overall == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{
		Status:        overall,
		Timestamp:     now,
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(now.Sub(h.started).Seconds()),
	})
}

// ReadinessHandler снимает под с балансировки, пока хоть одна проверка unhealthy.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	if overall, _ := h.evaluate(); overall == StatusUnhealthy {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// LivenessHandler отвечает 200, пока процесс обслуживает HTTP.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// timed выполняет fn и переводит ошибку в unhealthy.
func timed(name string, fn func() error) Check {
	start := time.Now()
	err := fn()
	check := Check{Name: name, Status: StatusHealthy, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}
	return check
}

// SimpleChecker оборачивает функцию без контекста.
type SimpleChecker struct {
	name    string
	checkFn func() error
}

// NewSimpleChecker создаёт проверку из функции.
func NewSimpleChecker(name string, checkFn func() error) *SimpleChecker {
	return &SimpleChecker{name: name, checkFn: checkFn}
}

// Check реализует Checker.
func (c *SimpleChecker) Check() Check {
	return timed(c.name, c.checkFn)
}

// PingChecker пингует хранилище корзин (PostgreSQL, Redis) с таймаутом.
type PingChecker struct {
	name    string
	ping    func(ctx context.Context) error
	timeout time.Duration
}

// NewPingChecker создаёт проверку; timeout <= 0 — 2 секунды.
func NewPingChecker(name string, ping func(ctx context.Context) error, timeout time.Duration) *PingChecker {
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	return &PingChecker{name: name, ping: ping, timeout: timeout}
}

// Check реализует Checker.
func (c *PingChecker) Check() Check {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return timed(c.name, func() error { return c.ping(ctx) })
}

// OutboxChecker переводит сервис в degraded, когда backlog outbox больше порога:
// корзина работает, но уведомления и события заказов отстают.
type OutboxChecker struct {
	stats     func() (domain.OutboxStats, error)
	threshold int
}

// NewOutboxChecker создаёт проверку; threshold <= 0 отключает порог.
func NewOutboxChecker(stats func() (domain.OutboxStats, error), threshold int) *OutboxChecker {
	return &OutboxChecker{stats: stats, threshold: threshold}
}

// Check реализует Checker. Ошибка чтения статистики даёт degraded, а не unhealthy.
func (c *OutboxChecker) Check() Check {
	var stats domain.OutboxStats
	check := timed("outbox", func() error {
		var err error
		stats, err = c.stats()
		return err
	})

	switch {
	case check.Status == StatusUnhealthy:
		check.Status = StatusDegraded
	case c.threshold > 0 && stats.PendingCount > c.threshold:
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("%d pending messages", stats.PendingCount)
	}
	return check
}

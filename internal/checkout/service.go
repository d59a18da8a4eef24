// Package checkout имитирует оформление заказа: проверка форм, задержка
// «запроса к API», сохранение заказа и его трекинг. Реального платежа нет.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/artcart/internal/cart"
	"github.com/vladislavdragonenkov/artcart/internal/delay"
	"github.com/vladislavdragonenkov/artcart/internal/domain"
	"github.com/vladislavdragonenkov/artcart/internal/metrics"
	"github.com/vladislavdragonenkov/artcart/internal/notify"
)

const (
	// DefaultDelay — длительность имитации запроса к платёжному API.
	DefaultDelay = 1500 * time.Millisecond
	// ShippingMethod — единственный способ доставки витрины.
	ShippingMethod = "Express Delivery (2-3 business days)"
	// ShippingLeadTime — через сколько заказ передаётся в доставку.
	ShippingLeadTime = 48 * time.Hour

	maxOrderIDAttempts = 5
)

// Carts выдаёт корзину сессии.
type Carts interface {
	Get(ctx context.Context, sessionID string) (*cart.Store, error)
}

// Options задаёт параметры сервиса оформления.
type Options struct {
	Notifier domain.Notifier
	Delayer  delay.Delayer
	Delay    time.Duration
	Metrics  *metrics.CartMetrics
	Logger   *log.Entry
	Now      func() time.Time
	Rand     *rand.Rand
}

// Option настраивает Service.
type Option func(*Options)

// WithNotifier задаёт получателя уведомлений.
func WithNotifier(n domain.Notifier) Option {
	return func(o *Options) { o.Notifier = n }
}

// WithDelay задаёт реализацию задержки и её длительность.
func WithDelay(d delay.Delayer, duration time.Duration) Option {
	return func(o *Options) {
		o.Delayer = d
		o.Delay = duration
	}
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.CartMetrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

// WithRand подменяет генератор номеров заказов (для тестов).
func WithRand(r *rand.Rand) Option {
	return func(o *Options) { o.Rand = r }
}

// Service оформляет и отслеживает заказы.
type Service struct {
	carts    Carts
	orders   domain.OrderRepository
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository

	notifier domain.Notifier
	delayer  delay.Delayer
	delay    time.Duration
	metrics  *metrics.CartMetrics
	logger   *log.Entry
	now      func() time.Time

	gate *sessionGate

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewService создаёт сервис оформления. outbox может быть nil.
func NewService(carts Carts, orders domain.OrderRepository, timeline domain.TimelineRepository, outbox domain.OutboxRepository, options ...Option) *Service {
	opts := Options{Delay: DefaultDelay}
	for _, option := range options {
		option(&opts)
	}
	if opts.Delayer == nil {
		opts.Delayer = delay.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "checkout")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Service{
		carts:    carts,
		orders:   orders,
		timeline: timeline,
		outbox:   outbox,
		notifier: opts.Notifier,
		delayer:  opts.Delayer,
		delay:    opts.Delay,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      opts.Now,
		gate:     newSessionGate(),
		rand:     opts.Rand,
	}
}

// PlaceOrder оформляет заказ из корзины сессии и убирает из неё заказанные позиции.
// Оформления одной сессии выполняются по очереди.
func (s *Service) PlaceOrder(ctx context.Context, sessionID string, shipping ShippingDetails, payment PaymentDetails) (domain.Order, error) {
	started := s.now()
	defer func() {
		s.metrics.RecordCheckoutDuration(s.now().Sub(started))
	}()

	if sessionID == "" {
		return domain.Order{}, domain.ErrSessionRequired
	}
	if err := ValidateForms(shipping, payment); err != nil {
		s.metrics.RecordCheckoutFailed("validation")
		return domain.Order{}, err
	}

	release, err := s.gate.acquire(ctx, sessionID)
	if err != nil {
		s.metrics.RecordCheckoutFailed("canceled")
		return domain.Order{}, fmt.Errorf("checkout interrupted: %w", err)
	}
	defer release()

	ctx = notify.ContextWithSession(ctx, sessionID)
	store, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("load cart: %w", err)
	}

	lines := store.Lines()
	if len(lines) == 0 {
		s.metrics.RecordCheckoutFailed("empty_cart")
		return domain.Order{}, domain.ErrCartEmpty
	}

	if err := s.delayer.Wait(ctx, s.delay); err != nil {
		s.metrics.RecordCheckoutFailed("canceled")
		return domain.Order{}, fmt.Errorf("checkout interrupted: %w", err)
	}

	placedAt := s.now().UTC()
	order := domain.Order{
		SessionID:      sessionID,
		Status:         domain.OrderStatusProcessing,
		Lines:          lines,
		Total:          domain.CartTotal(lines),
		Shipping:       shipping.ShippingAddress(),
		CardLast4:      payment.Last4(),
		ShippingMethod: ShippingMethod,
		TrackingNumber: newTrackingNumber(),
		PlacedAt:       placedAt,
		UpdatedAt:      placedAt,
	}

	if err := s.createOrder(&order); err != nil {
		s.metrics.RecordCheckoutFailed("storage")
		return domain.Order{}, err
	}

	logger := s.logger.WithFields(log.Fields{
		"order_id":   order.ID,
		"session_id": sessionID,
	})

	s.appendTimeline(logger, order.ID, domain.OrderStatusConfirmed, "Your order has been received and confirmed.", placedAt)
	s.appendTimeline(logger, order.ID, domain.OrderStatusProcessing, "Your order is being prepared and packaged.", placedAt)
	s.enqueueOrderPlaced(logger, order)

	s.metrics.RecordOrderPlaced()
	logger.WithField("total", order.Total.StringFixed(2)).Info("order placed")

	if s.notifier != nil {
		s.notifier.Notify(ctx, domain.Notification{
			Title:       "Order Placed Successfully!",
			Description: "Your order has been confirmed and will be shipped soon.",
		})
	}
	store.RemoveOrdered(ctx, lines)

	return order, nil
}

func (s *Service) createOrder(order *domain.Order) error {
	for attempt := 0; attempt < maxOrderIDAttempts; attempt++ {
		order.ID = s.newOrderID()
		if errs := order.ValidateInvariants(); len(errs) != 0 {
			return fmt.Errorf("invalid order: %w", errors.Join(errs...))
		}

		err := s.orders.Create(*order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrOrderAlreadyExists) {
			return fmt.Errorf("save order: %w", err)
		}
	}
	return fmt.Errorf("allocate order number: %w", domain.ErrOrderAlreadyExists)
}

func (s *Service) appendTimeline(logger *log.Entry, orderID string, status domain.OrderStatus, reason string, at time.Time) {
	if s.timeline == nil {
		return
	}
	if err := s.timeline.Append(domain.TimelineEvent{
		OrderID:  orderID,
		Type:     string(status),
		Reason:   reason,
		Occurred: at,
	}); err != nil {
		logger.WithError(err).WithField("stage", status).Warn("failed to append timeline event")
	}
}

func (s *Service) enqueueOrderPlaced(logger *log.Entry, order domain.Order) {
	if s.outbox == nil {
		return
	}

	payload, err := json.Marshal(domain.OrderPlacedPayload{
		OrderID:        order.ID,
		SessionID:      order.SessionID,
		Status:         string(order.Status),
		Total:          order.Total.StringFixed(2),
		ItemCount:      order.ItemCount(),
		TrackingNumber: order.TrackingNumber,
		PlacedAt:       order.PlacedAt,
	})
	if err != nil {
		logger.WithError(err).Warn("failed to marshal order.placed payload")
		return
	}

	if _, err := s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   order.ID,
		EventType:     domain.EventOrderPlaced,
		Payload:       payload,
	}); err != nil {
		logger.WithError(err).Warn("failed to enqueue order.placed event")
	}
}

// ListOrders возвращает последние заказы сессии.
func (s *Service) ListOrders(sessionID string, limit int) ([]domain.Order, error) {
	if sessionID == "" {
		return nil, domain.ErrSessionRequired
	}
	return s.orders.ListBySession(sessionID, limit)
}

// newOrderID возвращает номер вида ORD-NNNNNN (100000..999999).
func (s *Service) newOrderID() string {
	s.randMu.Lock()
	n := 100000 + s.rand.Intn(900000)
	s.randMu.Unlock()
	return fmt.Sprintf("ORD-%06d", n)
}

// newTrackingNumber возвращает номер отправления вида TRK + 12 цифр.
func newTrackingNumber() string {
	id := uuid.New()
	var n uint64
	for _, b := range id[:8] {
		n = n<<8 | uint64(b)
	}
	return fmt.Sprintf("TRK%012d", n%1_000_000_000_000)
}

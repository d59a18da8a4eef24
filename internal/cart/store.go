package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
	"github.com/vladislavdragonenkov/artcart/internal/metrics"
)

// DefaultKey — ключ, под которым хранится снимок корзины.
const DefaultKey = "cart"

// Названия операций для метрик и логов.
const (
	OpAdd         = "add"
	OpRemove      = "remove"
	OpSetQuantity = "set_quantity"
	OpClear       = "clear"
	OpCheckout    = "checkout"
)

// StoreOptions задаёт параметры корзины.
type StoreOptions struct {
	Key        string
	Notifier   domain.Notifier
	Logger     *log.Entry
	Metrics    *metrics.CartMetrics
	StockClamp bool
}

// Option настраивает Store.
type Option func(*StoreOptions)

// WithKey задаёт ключ снимка в хранилище.
func WithKey(key string) Option {
	return func(opts *StoreOptions) {
		opts.Key = key
	}
}

// WithNotifier задаёт получателя пользовательских уведомлений.
func WithNotifier(notifier domain.Notifier) Option {
	return func(opts *StoreOptions) {
		opts.Notifier = notifier
	}
}

// WithLogger задаёт logger корзины.
func WithLogger(logger *log.Entry) Option {
	return func(opts *StoreOptions) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики корзины.
func WithMetrics(m *metrics.CartMetrics) Option {
	return func(opts *StoreOptions) {
		opts.Metrics = m
	}
}

// WithStockClamp ограничивает количество в позиции остатком товара на складе.
func WithStockClamp(enabled bool) Option {
	return func(opts *StoreOptions) {
		opts.StockClamp = enabled
	}
}

func buildOptions(options []Option) StoreOptions {
	opts := StoreOptions{Key: DefaultKey}
	for _, option := range options {
		option(&opts)
	}
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "cart")
	}
	return opts
}

// Store хранит состояние корзины и зеркалит его в SnapshotStore после каждой мутации.
//
// Ошибки хранилища не прерывают операции: состояние в памяти остаётся
// источником правды, сбой записи только логируется и попадает в метрики.
type Store struct {
	mu sync.Mutex

	key        string
	storage    domain.SnapshotStore
	notifier   domain.Notifier
	logger     *log.Entry
	metrics    *metrics.CartMetrics
	stockClamp bool

	lines []domain.CartLine
}

// New создаёт корзину и восстанавливает её из storage.
// Отсутствующий или повреждённый снимок даёт пустую корзину.
// storage == nil означает корзину без персистентности.
func New(ctx context.Context, storage domain.SnapshotStore, options ...Option) *Store {
	opts := buildOptions(options)

	s := &Store{
		key:        opts.Key,
		storage:    storage,
		notifier:   opts.Notifier,
		logger:     opts.Logger.WithField("storage_key", opts.Key),
		metrics:    opts.Metrics,
		stockClamp: opts.StockClamp,
		lines:      []domain.CartLine{},
	}
	s.restore(ctx)

	return s
}

func (s *Store) restore(ctx context.Context) {
	if s.storage == nil {
		return
	}

	data, err := s.storage.Load(ctx, s.key)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			s.metrics.RecordRestore(metrics.RestoreResultEmpty)
			return
		}
		s.logger.WithError(err).Warn("failed to load cart snapshot, starting empty")
		s.metrics.RecordStorageError("load")
		s.metrics.RecordRestore(metrics.RestoreResultError)
		return
	}

	lines, err := DecodeSnapshot(data)
	if err != nil {
		s.logger.WithError(err).Warn("cart snapshot is corrupt, starting empty")
		s.metrics.RecordRestore(metrics.RestoreResultCorrupt)
		return
	}

	s.lines = lines
	s.metrics.RecordRestore(metrics.RestoreResultRestored)
	s.logger.WithField("lines", len(lines)).Debug("cart restored")
}

// Key возвращает ключ снимка в хранилище.
func (s *Store) Key() string {
	return s.key
}

// AddLine добавляет товар в корзину. Если позиция с тем же (product id, variant)
// уже есть, её количество увеличивается на quantity.
func (s *Store) AddLine(ctx context.Context, product domain.Product, quantity int, variant string) ([]domain.CartLine, error) {
	if product.ID == "" {
		return nil, domain.ErrProductRequired
	}
	if quantity <= 0 {
		return nil, domain.ErrQuantityInvalid
	}

	s.mu.Lock()

	key := domain.LineKey{ProductID: product.ID, Variant: variant}
	idx := s.indexOf(key)

	var note domain.Notification
	if idx >= 0 {
		current := s.lines[idx].Quantity
		next := current + quantity
		if s.stockClamp {
			next = clampToStock(next, product.InStock)
			if product.InStock <= 0 || next <= current {
				s.mu.Unlock()
				return nil, fmt.Errorf("%w: %s", domain.ErrOutOfStock, product.ID)
			}
		}
		s.lines[idx].Quantity = next
		note = domain.Notification{
			Title:       "Cart updated",
			Description: fmt.Sprintf("%s quantity increased to %d", product.Title, next),
		}
	} else {
		if s.stockClamp {
			if product.InStock <= 0 {
				s.mu.Unlock()
				return nil, fmt.Errorf("%w: %s", domain.ErrOutOfStock, product.ID)
			}
			quantity = clampToStock(quantity, product.InStock)
		}
		s.lines = append(s.lines, domain.CartLine{
			Product:         product.Clone(),
			Quantity:        quantity,
			SelectedVariant: variant,
		})
		note = domain.Notification{
			Title:       "Added to cart",
			Description: fmt.Sprintf("%s has been added to your cart", product.Title),
		}
	}

	lines := s.commit(ctx, OpAdd)
	s.mu.Unlock()

	s.notify(ctx, note)
	return lines, nil
}

// RemoveLine удаляет позицию с ключом (product id, variant). Пустой variant
// удаляет все позиции товара. Отсутствующая позиция — не ошибка: состояние
// и хранилище не меняются.
func (s *Store) RemoveLine(ctx context.Context, productID, variant string) []domain.CartLine {
	s.mu.Lock()

	kept := s.lines[:0:0]
	var removed []domain.CartLine
	for _, line := range s.lines {
		if matchLine(line, productID, variant) {
			removed = append(removed, line)
			continue
		}
		kept = append(kept, line)
	}
	if len(removed) == 0 {
		lines := domain.CloneLines(s.lines)
		s.mu.Unlock()
		return lines
	}
	s.lines = kept

	lines := s.commit(ctx, OpRemove)
	s.mu.Unlock()

	s.notify(ctx, domain.Notification{
		Title:       "Item removed",
		Description: fmt.Sprintf("%s has been removed from your cart", removed[0].Product.Title),
	})
	return lines
}

// SetQuantity выставляет количество позиции. quantity <= 0 эквивалентно RemoveLine.
// Пустой variant меняет количество во всех позициях товара.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int, variant string) []domain.CartLine {
	if quantity <= 0 {
		return s.RemoveLine(ctx, productID, variant)
	}

	s.mu.Lock()

	var (
		title   string
		shown   int
		changed bool
	)
	for i := range s.lines {
		line := &s.lines[i]
		if !matchLine(*line, productID, variant) {
			continue
		}
		next := quantity
		if s.stockClamp && line.Product.InStock > 0 {
			next = clampToStock(next, line.Product.InStock)
		}
		if line.Quantity == next {
			continue
		}
		line.Quantity = next
		if !changed {
			title = line.Product.Title
			shown = next
		}
		changed = true
	}
	if !changed {
		lines := domain.CloneLines(s.lines)
		s.mu.Unlock()
		return lines
	}

	lines := s.commit(ctx, OpSetQuantity)
	s.mu.Unlock()

	s.notify(ctx, domain.Notification{
		Title:       "Cart updated",
		Description: fmt.Sprintf("%s quantity set to %d", title, shown),
	})
	return lines
}

// Clear очищает корзину. Уведомление и запись снимка выполняются всегда.
func (s *Store) Clear(ctx context.Context) []domain.CartLine {
	s.mu.Lock()
	s.lines = []domain.CartLine{}
	lines := s.commit(ctx, OpClear)
	s.mu.Unlock()

	s.notify(ctx, domain.Notification{
		Title:       "Cart cleared",
		Description: "All items have been removed from your cart",
	})
	return lines
}

// RemoveOrdered вычитает из корзины оформленные позиции: количество каждой
// позиции уменьшается на заказанное, позиции с нулём удаляются. Всё, что
// добавлено после снятия ordered, остаётся в корзине.
func (s *Store) RemoveOrdered(ctx context.Context, ordered []domain.CartLine) []domain.CartLine {
	take := make(map[domain.LineKey]int, len(ordered))
	for _, line := range ordered {
		take[line.Key()] += line.Quantity
	}

	s.mu.Lock()

	kept := s.lines[:0:0]
	changed := false
	for _, line := range s.lines {
		if n := take[line.Key()]; n > 0 {
			changed = true
			if line.Quantity <= n {
				continue
			}
			line.Quantity -= n
		}
		kept = append(kept, line)
	}
	if !changed {
		lines := domain.CloneLines(s.lines)
		s.mu.Unlock()
		return lines
	}
	s.lines = kept

	lines := s.commit(ctx, OpCheckout)
	s.mu.Unlock()

	note := domain.Notification{
		Title:       "Cart cleared",
		Description: "All items have been removed from your cart",
	}
	if len(lines) > 0 {
		note = domain.Notification{
			Title:       "Cart updated",
			Description: "Ordered items have been removed from your cart",
		}
	}
	s.notify(ctx, note)
	return lines
}

// Lines возвращает копию текущих позиций в порядке добавления.
func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneLines(s.lines)
}

// Total возвращает сумму price * quantity по всем позициям.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CartTotal(s.lines)
}

// Count возвращает общее количество единиц товара в корзине.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CartCount(s.lines)
}

// matchLine сравнивает позицию с (productID, variant); пустой variant совпадает с любым.
func matchLine(line domain.CartLine, productID, variant string) bool {
	if line.Product.ID != productID {
		return false
	}
	return variant == "" || line.SelectedVariant == variant
}

func (s *Store) indexOf(key domain.LineKey) int {
	for i, line := range s.lines {
		if line.Key() == key {
			return i
		}
	}
	return -1
}

// commit сохраняет снимок и возвращает копию позиций. Вызывается под s.mu.
func (s *Store) commit(ctx context.Context, op string) []domain.CartLine {
	s.metrics.RecordOperation(op)
	s.persist(ctx, op)
	return domain.CloneLines(s.lines)
}

func (s *Store) persist(ctx context.Context, op string) {
	if s.storage == nil {
		return
	}

	data, err := EncodeSnapshot(s.lines)
	if err != nil {
		s.logger.WithError(err).WithField("operation", op).Warn("failed to encode cart snapshot")
		s.metrics.RecordStorageError("encode")
		return
	}

	if err := s.storage.Save(ctx, s.key, data); err != nil {
		s.logger.WithError(err).WithField("operation", op).Warn("failed to persist cart snapshot")
		s.metrics.RecordStorageError("save")
	}
}

func (s *Store) notify(ctx context.Context, n domain.Notification) {
	s.metrics.RecordNotification()
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, n)
}

func clampToStock(quantity, inStock int) int {
	if inStock > 0 && quantity > inStock {
		return inStock
	}
	return quantity
}

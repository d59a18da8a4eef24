package memory

import (
	"cmp"
	"slices"
	"sync"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

// OrderRepository хранит симулированные заказы в памяти процесса.
// Индекс bySession держит номера заказов каждой сессии.
type OrderRepository struct {
	mu        sync.RWMutex
	orders    map[string]domain.Order
	bySession map[string][]string
}

// NewOrderRepository создаёт пустое хранилище заказов.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:    make(map[string]domain.Order),
		bySession: make(map[string][]string),
	}
}

// Create сохраняет копию заказа; повторный номер — ErrOrderAlreadyExists.
func (r *OrderRepository) Create(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.orders[order.ID]; taken {
		return domain.ErrOrderAlreadyExists
	}
	order.Lines = domain.CloneLines(order.Lines)
	r.orders[order.ID] = order
	r.bySession[order.SessionID] = append(r.bySession[order.SessionID], order.ID)
	return nil
}

// Get возвращает копию заказа.
func (r *OrderRepository) Get(id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Lines = domain.CloneLines(order.Lines)
	return order, nil
}

// ListBySession отдаёт заказы сессии от новых к старым.
func (r *OrderRepository) ListBySession(sessionID string, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	ids := r.bySession[sessionID]
	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		order := r.orders[id]
		order.Lines = domain.CloneLines(order.Lines)
		orders = append(orders, order)
	}
	r.mu.RUnlock()

	slices.SortFunc(orders, newestFirst)
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func newestFirst(a, b domain.Order) int {
	if c := b.PlacedAt.Compare(a.PlacedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

var _ domain.OrderRepository = (*OrderRepository)(nil)

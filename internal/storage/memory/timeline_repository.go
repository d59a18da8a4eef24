package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

// TimelineRepository хранит шаги трекинга заказов, упорядоченные по времени.
type TimelineRepository struct {
	mu      sync.RWMutex
	byOrder map[string][]domain.TimelineEvent
	now     func() time.Time
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() *TimelineRepository {
	return &TimelineRepository{
		byOrder: make(map[string][]domain.TimelineEvent),
		now:     time.Now,
	}
}

// Append вставляет событие на место по Occurred; события с равным временем
// сохраняют порядок добавления.
func (r *TimelineRepository) Append(event domain.TimelineEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.Occurred.IsZero() {
		event.Occurred = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	events := r.byOrder[event.OrderID]
	idx := sort.Search(len(events), func(i int) bool {
		return events[i].Occurred.After(event.Occurred)
	})
	events = append(events, domain.TimelineEvent{})
	copy(events[idx+1:], events[idx:])
	events[idx] = event
	r.byOrder[event.OrderID] = events

	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *TimelineRepository) List(orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.TimelineEvent{}, r.byOrder[orderID]...), nil
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)

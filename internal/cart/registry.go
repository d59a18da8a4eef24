package cart

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

const minEvictionInterval = time.Second

// Registry выдаёт корзину на каждую сессию сетевого сервиса.
// Корзина сессии хранится под ключом "<base>:<session>" и восстанавливается
// лениво, при первом обращении. Восстановление идёт вне общей блокировки:
// медленный Load одной сессии не задерживает остальные.
type Registry struct {
	mu      sync.Mutex
	storage domain.SnapshotStore
	options []Option
	baseKey string
	opts    StoreOptions
	stores  map[string]*registryEntry
	now     func() time.Time
}

type registryEntry struct {
	ready    chan struct{}
	store    *Store
	lastUsed time.Time
}

func (e *registryEntry) loaded() bool {
	select {
	case <-e.ready:
		return true
	default:
		return false
	}
}

// NewRegistry создаёт реестр корзин. Опции применяются к каждой корзине;
// WithKey задаёт базовый ключ.
func NewRegistry(storage domain.SnapshotStore, options ...Option) *Registry {
	opts := buildOptions(options)
	return &Registry{
		storage: storage,
		options: options,
		baseKey: opts.Key,
		opts:    opts,
		stores:  make(map[string]*registryEntry),
		now:     time.Now,
	}
}

// SessionKey возвращает ключ снимка для сессии.
func (r *Registry) SessionKey(sessionID string) string {
	return r.baseKey + ":" + sessionID
}

// Get возвращает корзину сессии, при необходимости восстанавливая её из хранилища.
// Параллельные запросы одной сессии ждут одного восстановления.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Store, error) {
	if sessionID == "" {
		return nil, domain.ErrSessionRequired
	}

	r.mu.Lock()
	entry, ok := r.stores[sessionID]
	if ok {
		entry.lastUsed = r.now()
		r.mu.Unlock()

		select {
		case <-entry.ready:
			return entry.store, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	entry = &registryEntry{ready: make(chan struct{}), lastUsed: r.now()}
	r.stores[sessionID] = entry
	r.opts.Metrics.SetActiveCarts(len(r.stores))
	r.mu.Unlock()

	options := append(append([]Option{}, r.options...),
		WithKey(r.SessionKey(sessionID)),
		WithLogger(r.opts.Logger.WithField("session_id", sessionID)),
	)
	// Корзину ждут и другие запросы сессии, поэтому отмена первого не должна
	// прерывать восстановление.
	entry.store = New(context.WithoutCancel(ctx), r.storage, options...)
	close(entry.ready)

	return entry.store, nil
}

// Evict выгружает корзину сессии из памяти. Снимок в хранилище остаётся.
func (r *Registry) Evict(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.stores, sessionID)
	r.opts.Metrics.SetActiveCarts(len(r.stores))
}

// EvictIdleBefore выгружает загруженные корзины, к которым не обращались
// с момента cutoff, и возвращает их количество.
func (r *Registry) EvictIdleBefore(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for sessionID, entry := range r.stores {
		if !entry.loaded() || !entry.lastUsed.Before(cutoff) {
			continue
		}
		delete(r.stores, sessionID)
		evicted++
	}
	if evicted > 0 {
		r.opts.Metrics.SetActiveCarts(len(r.stores))
	}
	return evicted
}

// RunEviction периодически выгружает корзины, простаивающие дольше ttl,
// пока не отменён ctx. ttl <= 0 отключает выгрузку.
func (r *Registry) RunEviction(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := max(ttl/2, minEvictionInterval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictIdleBefore(r.now().Add(-ttl)); n > 0 {
				r.opts.Logger.WithField("evicted", n).Debug("idle carts evicted")
			}
		}
	}
}

// Len возвращает количество загруженных корзин.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

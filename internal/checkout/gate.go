package checkout

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// sessionGate пропускает к оформлению не более одного заказа на сессию.
type sessionGate struct {
	mu    sync.Mutex
	slots map[string]*gateSlot
}

type gateSlot struct {
	sem  *semaphore.Weighted
	refs int
}

func newSessionGate() *sessionGate {
	return &sessionGate{slots: make(map[string]*gateSlot)}
}

// acquire ждёт своей очереди или отмены ctx. release обязателен при nil-ошибке.
func (g *sessionGate) acquire(ctx context.Context, sessionID string) (release func(), err error) {
	g.mu.Lock()
	slot, ok := g.slots[sessionID]
	if !ok {
		slot = &gateSlot{sem: semaphore.NewWeighted(1)}
		g.slots[sessionID] = slot
	}
	slot.refs++
	g.mu.Unlock()

	if err := slot.sem.Acquire(ctx, 1); err != nil {
		g.leave(sessionID, slot)
		return nil, err
	}
	return func() {
		slot.sem.Release(1)
		g.leave(sessionID, slot)
	}, nil
}

// leave удаляет слот, когда его больше никто не ждёт.
func (g *sessionGate) leave(sessionID string, slot *gateSlot) {
	g.mu.Lock()
	defer g.mu.Unlock()

	slot.refs--
	if slot.refs == 0 {
		delete(g.slots, sessionID)
	}
}

func (g *sessionGate) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.slots)
}

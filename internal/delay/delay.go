// Package delay абстрагирует искусственные задержки («имитация запроса к API»),
// чтобы в тестах их можно было выполнять синхронно.
package delay

import (
	"context"
	"sync"
	"time"
)

// Delayer ожидает d или отмену ctx.
type Delayer interface {
	Wait(ctx context.Context, d time.Duration) error
}

// Real — настоящая задержка на таймере.
type Real struct{}

// Wait блокируется на d; при отмене ctx возвращает ctx.Err().
func (Real) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Instant не ждёт, а только запоминает запрошенные задержки.
type Instant struct {
	mu    sync.Mutex
	waits []time.Duration
}

// Wait сразу возвращает управление (или ctx.Err(), если контекст уже отменён).
func (i *Instant) Wait(ctx context.Context, d time.Duration) error {
	i.mu.Lock()
	i.waits = append(i.waits, d)
	i.mu.Unlock()
	return ctx.Err()
}

// Waits возвращает копию запрошенных задержек.
func (i *Instant) Waits() []time.Duration {
	i.mu.Lock()
	defer i.mu.Unlock()
	result := make([]time.Duration, len(i.waits))
	copy(result, i.waits)
	return result
}

var (
	_ Delayer = Real{}
	_ Delayer = (*Instant)(nil)
)

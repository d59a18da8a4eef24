// Package notify содержит получателей пользовательских уведомлений корзины.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

type sessionKey struct{}

// ContextWithSession кладёт идентификатор сессии в контекст операции.
func ContextWithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFromContext возвращает идентификатор сессии или пустую строку.
func SessionFromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionKey{}).(string)
	return sessionID
}

// LogNotifier пишет уведомления в лог.
type LogNotifier struct {
	logger *log.Entry
}

// NewLogNotifier создаёт LogNotifier. logger == nil — logrus по умолчанию.
func NewLogNotifier(logger *log.Entry) *LogNotifier {
	if logger == nil {
		logger = log.WithField("component", "notifier")
	}
	return &LogNotifier{logger: logger}
}

// Notify логирует уведомление на уровне Info.
func (n *LogNotifier) Notify(ctx context.Context, note domain.Notification) {
	entry := n.logger.WithField("title", note.Title)
	if sessionID := SessionFromContext(ctx); sessionID != "" {
		entry = entry.WithField("session_id", sessionID)
	}
	entry.Info(note.Description)
}

// OutboxNotifier ставит уведомление в transactional outbox как cart.notification.
type OutboxNotifier struct {
	repo   domain.OutboxRepository
	logger *log.Entry
	now    func() time.Time
}

// NewOutboxNotifier создаёт OutboxNotifier поверх репозитория outbox.
func NewOutboxNotifier(repo domain.OutboxRepository, logger *log.Entry) *OutboxNotifier {
	if logger == nil {
		logger = log.WithField("component", "outbox-notifier")
	}
	return &OutboxNotifier{repo: repo, logger: logger, now: time.Now}
}

// Notify сериализует уведомление и кладёт его в outbox. Ошибки только логируются.
func (n *OutboxNotifier) Notify(ctx context.Context, note domain.Notification) {
	if n.repo == nil {
		return
	}

	sessionID := SessionFromContext(ctx)
	payload, err := json.Marshal(domain.CartNotificationPayload{
		SessionID:   sessionID,
		Title:       note.Title,
		Description: note.Description,
		OccurredAt:  n.now().UTC(),
	})
	if err != nil {
		n.logger.WithError(err).Warn("failed to marshal cart notification")
		return
	}

	if _, err := n.repo.Enqueue(domain.OutboxMessage{
		AggregateType: domain.AggregateCart,
		AggregateID:   sessionID,
		EventType:     domain.EventCartNotification,
		Payload:       payload,
	}); err != nil {
		n.logger.WithError(err).WithField("session_id", sessionID).Warn("failed to enqueue cart notification")
	}
}

// Multi рассылает уведомление всем получателям по порядку.
type Multi []domain.Notifier

// Notify вызывает Notify у каждого непустого получателя.
func (m Multi) Notify(ctx context.Context, note domain.Notification) {
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		notifier.Notify(ctx, note)
	}
}

// Recorder запоминает уведомления (для тестов).
type Recorder struct {
	mu    sync.Mutex
	notes []domain.Notification
}

// Notify сохраняет уведомление.
func (r *Recorder) Notify(_ context.Context, note domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note)
}

// Notifications возвращает копию записанных уведомлений.
func (r *Recorder) Notifications() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.notes...)
}

// Reset очищает записанные уведомления.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = nil
}

var (
	_ domain.Notifier = (*LogNotifier)(nil)
	_ domain.Notifier = (*OutboxNotifier)(nil)
	_ domain.Notifier = Multi(nil)
	_ domain.Notifier = (*Recorder)(nil)
)

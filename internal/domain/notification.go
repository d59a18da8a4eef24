package domain

import "context"

// Notification — короткое сообщение для пользователя (заголовок + описание).
type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Notifier доставляет уведомления в общую область сообщений.
// Ошибки доставки не должны влиять на операцию, которая уведомление породила.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

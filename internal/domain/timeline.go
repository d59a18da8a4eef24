package domain

import "time"

// TimelineEvent описывает шаг отслеживания заказа: Type — стадия,
// Reason — человекочитаемое пояснение для страницы трекинга.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}

// Validate проверяет обязательные поля события.
func (e TimelineEvent) Validate() error {
	if e.OrderID == "" {
		return ErrOrderIDRequired
	}
	if e.Type == "" {
		return ErrTimelineTypeRequired
	}
	return nil
}

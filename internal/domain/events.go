package domain

import "time"

// CartNotificationPayload — полезная нагрузка события cart.notification в outbox.
type CartNotificationPayload struct {
	SessionID   string    `json:"session_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// OrderPlacedPayload — полезная нагрузка события order.placed в outbox.
type OrderPlacedPayload struct {
	OrderID        string    `json:"order_id"`
	SessionID      string    `json:"session_id"`
	Status         string    `json:"status"`
	Total          string    `json:"total"`
	ItemCount      int       `json:"item_count"`
	TrackingNumber string    `json:"tracking_number"`
	PlacedAt       time.Time `json:"placed_at"`
}

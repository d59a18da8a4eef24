package domain

// OrderRepository описывает требования к хранилищу симулированных заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrOrderAlreadyExists, если номер занят.
	Create(order Order) error
	// Get возвращает заказ по номеру или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// ListBySession возвращает заказы сессии, новые первыми; limit <= 0 — без ограничения.
	ListBySession(sessionID string, limit int) ([]Order, error)
}

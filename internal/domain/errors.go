package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора товара.
	ErrProductRequired = errors.New("product id is required")
	// Ошибка отсутствующего названия товара.
	ErrProductTitleRequired = errors.New("product title is required")
	// Цена товара в каталоге должна быть положительной.
	ErrProductPriceInvalid = errors.New("product price must be greater than zero")
	// Остаток на складе не может быть отрицательным.
	ErrProductStockNegative = errors.New("product stock must be non-negative")
	// ErrProductNotFound возвращается, если товара нет в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrQuantityInvalid = errors.New("quantity must be greater than zero")
	// ErrOutOfStock — товара нет на складе (только при включённом ограничении по остатку).
	ErrOutOfStock = errors.New("product is out of stock")
	// Ошибка дублирующихся позиций с одинаковым ключом (product id, variant).
	ErrDuplicateLine = errors.New("cart contains duplicate product/variant lines")
	// ErrSnapshotNotFound — в хранилище нет сохранённой корзины по ключу.
	ErrSnapshotNotFound = errors.New("cart snapshot not found")
	// ErrSessionRequired — корзина сервиса адресуется идентификатором сессии.
	ErrSessionRequired = errors.New("session id is required")
	// ErrCartEmpty — оформить пустую корзину нельзя.
	ErrCartEmpty = errors.New("cart is empty")
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка заказа без позиций.
	ErrOrderLinesRequired = errors.New("order must contain at least one line")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrOrderTotalMismatch = errors.New("order total does not match lines sum")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrTimelineTypeRequired — событие трекинга без стадии.
	ErrTimelineTypeRequired = errors.New("timeline event type is required")
	// ErrOrderAlreadyExists — номер заказа уже занят.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrOutboxEventTypeRequired — сообщение outbox без event_type нельзя маршрутизировать.
	ErrOutboxEventTypeRequired = errors.New("outbox message requires event type")
)

// IsNotFound проверяет, относится ли ошибка к отсутствующей сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSnapshotNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}

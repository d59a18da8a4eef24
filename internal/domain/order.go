package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает стадию симулированного заказа.
type OrderStatus string

const (
	// OrderStatusConfirmed — заказ принят и подтверждён.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing — заказ собирается и упаковывается.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipping — заказ передан службе доставки.
	OrderStatusShipping OrderStatus = "shipping"
)

// ShippingAddress — адрес доставки из формы оформления.
type ShippingAddress struct {
	FullName string `json:"fullName"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zipCode"`
	Phone    string `json:"phone"`
}

// Order — локально симулированный заказ. Реального платежа нет:
// от карты сохраняются только последние четыре цифры.
type Order struct {
	ID             string
	SessionID      string
	Status         OrderStatus
	Lines          []CartLine
	Total          decimal.Decimal
	Shipping       ShippingAddress
	CardLast4      string
	ShippingMethod string
	TrackingNumber string
	PlacedAt       time.Time
	UpdatedAt      time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.ID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrOrderLinesRequired)
	}
	errs = append(errs, ValidateLines(o.Lines)...)

	// Сверяем сумму заказа с суммой позиций: qty * price.
	if !CartTotal(o.Lines).Equal(o.Total) {
		errs = append(errs, ErrOrderTotalMismatch)
	}

	return errs
}

// ItemCount возвращает количество единиц товара в заказе.
func (o *Order) ItemCount() int {
	return CartCount(o.Lines)
}

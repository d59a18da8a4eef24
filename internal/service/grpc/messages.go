package grpcsvc

import (
	"time"

	"github.com/vladislavdragonenkov/artcart/internal/checkout"
	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

// Cart — состояние корзины в каждом ответе, меняющем или читающем корзину.
type Cart struct {
	SessionID string            `json:"session_id"`
	Lines     []domain.CartLine `json:"lines"`
	Total     string            `json:"total"`
	Count     int               `json:"count"`
}

type GetCartRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type AddLineRequest struct {
	SessionID string `json:"session_id,omitempty"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Variant   string `json:"variant,omitempty"`
}

type RemoveLineRequest struct {
	SessionID string `json:"session_id,omitempty"`
	ProductID string `json:"product_id"`
	Variant   string `json:"variant,omitempty"`
}

type SetQuantityRequest struct {
	SessionID string `json:"session_id,omitempty"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Variant   string `json:"variant,omitempty"`
}

type ClearCartRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// CartResponse возвращается всеми методами корзины.
type CartResponse struct {
	Cart Cart `json:"cart"`
}

// ListProductsRequest фильтрует каталог: по категории, только избранные
// или похожие на товар RelatedTo.
type ListProductsRequest struct {
	Category     string `json:"category,omitempty"`
	FeaturedOnly bool   `json:"featured_only,omitempty"`
	RelatedTo    string `json:"related_to,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

type ListProductsResponse struct {
	Products []domain.Product `json:"products"`
}

type GetProductRequest struct {
	ProductID string `json:"product_id"`
}

type GetProductResponse struct {
	Product domain.Product   `json:"product"`
	Related []domain.Product `json:"related"`
}

type PlaceOrderRequest struct {
	SessionID string                   `json:"session_id,omitempty"`
	Shipping  checkout.ShippingDetails `json:"shipping"`
	Payment   checkout.PaymentDetails  `json:"payment"`
}

// Order — представление заказа наружу. Номер карты не передаётся,
// только последние четыре цифры.
type Order struct {
	ID             string                 `json:"id"`
	SessionID      string                 `json:"session_id"`
	Status         string                 `json:"status"`
	Lines          []domain.CartLine      `json:"lines"`
	Total          string                 `json:"total"`
	ItemCount      int                    `json:"item_count"`
	Shipping       domain.ShippingAddress `json:"shipping"`
	CardLast4      string                 `json:"card_last4"`
	ShippingMethod string                 `json:"shipping_method"`
	TrackingNumber string                 `json:"tracking_number"`
	PlacedAt       time.Time              `json:"placed_at"`
}

type PlaceOrderResponse struct {
	Order Order `json:"order"`
	Cart  Cart  `json:"cart"`
}

type TrackOrderRequest struct {
	OrderID string `json:"order_id"`
}

type TrackOrderResponse struct {
	Order            Order            `json:"order"`
	Stages           []checkout.Stage `json:"stages"`
	ExpectedShipping time.Time        `json:"expected_shipping"`
}

type ListNotificationsRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type ListNotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

type DismissNotificationsRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type DismissNotificationsResponse struct{}

type ListOrdersRequest struct {
	SessionID string `json:"session_id,omitempty"`
	PageSize  int    `json:"page_size,omitempty"`
}

type ListOrdersResponse struct {
	Orders []Order `json:"orders"`
}

func toOrder(order domain.Order) Order {
	return Order{
		ID:             order.ID,
		SessionID:      order.SessionID,
		Status:         string(order.Status),
		Lines:          domain.CloneLines(order.Lines),
		Total:          order.Total.StringFixed(2),
		ItemCount:      order.ItemCount(),
		Shipping:       order.Shipping,
		CardLast4:      order.CardLast4,
		ShippingMethod: order.ShippingMethod,
		TrackingNumber: order.TrackingNumber,
		PlacedAt:       order.PlacedAt,
	}
}

func (r *GetCartRequest) session() string {
	if r == nil {
		return ""
	}
	return r.SessionID
}

func (r *ClearCartRequest) session() string {
	if r == nil {
		return ""
	}
	return r.SessionID
}

func (r *ListNotificationsRequest) session() string {
	if r == nil {
		return ""
	}
	return r.SessionID
}

func (r *DismissNotificationsRequest) session() string {
	if r == nil {
		return ""
	}
	return r.SessionID
}

func (r *ListOrdersRequest) session() string {
	if r == nil {
		return ""
	}
	return r.SessionID
}

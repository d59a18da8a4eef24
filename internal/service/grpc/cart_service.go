package grpcsvc

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/artcart/internal/cart"
	"github.com/vladislavdragonenkov/artcart/internal/checkout"
	"github.com/vladislavdragonenkov/artcart/internal/domain"
	"github.com/vladislavdragonenkov/artcart/internal/notify"
)

const (
	// SessionHeader — metadata-заголовок с идентификатором сессии,
	// если session_id в запросе не задан.
	SessionHeader = "x-session-id"

	defaultListOrdersLimit = 20
	defaultRelatedLimit    = 3
)

// Catalog — каталог товаров, который отдаёт сервис.
type Catalog interface {
	domain.ProductCatalog
	Featured() []domain.Product
	ByCategory(category string) []domain.Product
	Related(id string, limit int) []domain.Product
}

// Carts выдаёт корзину по сессии.
type Carts interface {
	Get(ctx context.Context, sessionID string) (*cart.Store, error)
}

// NotificationFeed — общая область уведомлений сессии.
type NotificationFeed interface {
	List(sessionID string) []domain.Notification
	Dismiss(sessionID string)
}

// CartService реализует gRPC API поверх корзин сессий, каталога и оформления.
type CartService struct {
	carts    Carts
	catalog  Catalog
	checkout *checkout.Service
	feed     NotificationFeed
	logger   *log.Entry
}

// NewCartService конструирует сервис с зависимостями. feed может быть nil:
// тогда ListNotifications возвращает пустой список.
func NewCartService(carts Carts, catalog Catalog, checkoutSvc *checkout.Service, feed NotificationFeed, logger *log.Entry) *CartService {
	if logger == nil {
		logger = log.New().WithField("component", "cart-service")
	}
	return &CartService{
		carts:    carts,
		catalog:  catalog,
		checkout: checkoutSvc,
		feed:     feed,
		logger:   logger,
	}
}

// GetCart возвращает корзину сессии.
func (s *CartService) GetCart(ctx context.Context, req *GetCartRequest) (*CartResponse, error) {
	_, sessionID, store, err := s.loadCart(ctx, req.session(), "GetCart")
	if err != nil {
		return nil, err
	}
	return &CartResponse{Cart: toCart(sessionID, store)}, nil
}

// AddLine добавляет товар каталога в корзину.
func (s *CartService) AddLine(ctx context.Context, req *AddLineRequest) (*CartResponse, error) {
	if req == nil || req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}

	product, err := s.catalog.Get(req.ProductID)
	if err != nil {
		return nil, s.toStatus(err, "AddLine")
	}

	ctx, sessionID, store, err := s.loadCart(ctx, req.SessionID, "AddLine")
	if err != nil {
		return nil, err
	}
	if _, err := store.AddLine(ctx, product, req.Quantity, req.Variant); err != nil {
		return nil, s.toStatus(err, "AddLine")
	}

	return &CartResponse{Cart: toCart(sessionID, store)}, nil
}

// RemoveLine удаляет позицию; отсутствующая позиция не считается ошибкой.
func (s *CartService) RemoveLine(ctx context.Context, req *RemoveLineRequest) (*CartResponse, error) {
	if req == nil || req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}

	ctx, sessionID, store, err := s.loadCart(ctx, req.SessionID, "RemoveLine")
	if err != nil {
		return nil, err
	}
	store.RemoveLine(ctx, req.ProductID, req.Variant)

	return &CartResponse{Cart: toCart(sessionID, store)}, nil
}

// SetQuantity задаёт количество; quantity <= 0 удаляет позицию.
func (s *CartService) SetQuantity(ctx context.Context, req *SetQuantityRequest) (*CartResponse, error) {
	if req == nil || req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}

	ctx, sessionID, store, err := s.loadCart(ctx, req.SessionID, "SetQuantity")
	if err != nil {
		return nil, err
	}
	store.SetQuantity(ctx, req.ProductID, req.Quantity, req.Variant)

	return &CartResponse{Cart: toCart(sessionID, store)}, nil
}

// ClearCart очищает корзину сессии.
func (s *CartService) ClearCart(ctx context.Context, req *ClearCartRequest) (*CartResponse, error) {
	ctx, sessionID, store, err := s.loadCart(ctx, req.session(), "ClearCart")
	if err != nil {
		return nil, err
	}
	store.Clear(ctx)

	return &CartResponse{Cart: toCart(sessionID, store)}, nil
}

// ListProducts возвращает товары каталога с учётом фильтров.
func (s *CartService) ListProducts(_ context.Context, req *ListProductsRequest) (*ListProductsResponse, error) {
	if req == nil {
		req = &ListProductsRequest{}
	}
	if req.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must be >= 0")
	}

	var products []domain.Product
	switch {
	case req.RelatedTo != "":
		if _, err := s.catalog.Get(req.RelatedTo); err != nil {
			return nil, s.toStatus(err, "ListProducts")
		}
		limit := req.Limit
		if limit == 0 {
			limit = defaultRelatedLimit
		}
		products = s.catalog.Related(req.RelatedTo, limit)
	case req.FeaturedOnly:
		products = s.catalog.Featured()
	case req.Category != "":
		products = s.catalog.ByCategory(req.Category)
	default:
		products = s.catalog.List()
	}

	if req.FeaturedOnly && req.Category != "" {
		filtered := products[:0]
		for _, product := range products {
			if product.Category == req.Category {
				filtered = append(filtered, product)
			}
		}
		products = filtered
	}
	if req.Limit > 0 && len(products) > req.Limit {
		products = products[:req.Limit]
	}
	if products == nil {
		products = []domain.Product{}
	}

	return &ListProductsResponse{Products: products}, nil
}

// GetProduct возвращает карточку товара и похожие товары.
func (s *CartService) GetProduct(_ context.Context, req *GetProductRequest) (*GetProductResponse, error) {
	if req == nil || req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}

	product, err := s.catalog.Get(req.ProductID)
	if err != nil {
		return nil, s.toStatus(err, "GetProduct")
	}

	return &GetProductResponse{
		Product: product,
		Related: s.catalog.Related(product.ID, defaultRelatedLimit),
	}, nil
}

// PlaceOrder оформляет заказ из корзины сессии.
func (s *CartService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if s.checkout == nil {
		return nil, status.Error(codes.Unimplemented, "checkout is disabled")
	}

	sessionID, err := sessionFromContext(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	order, err := s.checkout.PlaceOrder(ctx, sessionID, req.Shipping, req.Payment)
	if err != nil {
		return nil, s.toStatus(err, "PlaceOrder")
	}

	_, _, store, err := s.loadCart(ctx, sessionID, "PlaceOrder")
	if err != nil {
		return nil, err
	}

	return &PlaceOrderResponse{
		Order: toOrder(order),
		Cart:  toCart(sessionID, store),
	}, nil
}

// TrackOrder возвращает шаги отслеживания заказа.
func (s *CartService) TrackOrder(_ context.Context, req *TrackOrderRequest) (*TrackOrderResponse, error) {
	if req == nil || req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}
	if s.checkout == nil {
		return nil, status.Error(codes.Unimplemented, "checkout is disabled")
	}

	tracking, err := s.checkout.TrackOrder(req.OrderID)
	if err != nil {
		return nil, s.toStatus(err, "TrackOrder")
	}

	return &TrackOrderResponse{
		Order:            toOrder(tracking.Order),
		Stages:           tracking.Stages,
		ExpectedShipping: tracking.ExpectedShipping,
	}, nil
}

// ListNotifications возвращает уведомления сессии, новые последними.
func (s *CartService) ListNotifications(ctx context.Context, req *ListNotificationsRequest) (*ListNotificationsResponse, error) {
	sessionID, err := sessionFromContext(ctx, req.session())
	if err != nil {
		return nil, err
	}

	notifications := []domain.Notification{}
	if s.feed != nil {
		notifications = append(notifications, s.feed.List(sessionID)...)
	}

	return &ListNotificationsResponse{Notifications: notifications}, nil
}

// DismissNotifications очищает уведомления сессии.
func (s *CartService) DismissNotifications(ctx context.Context, req *DismissNotificationsRequest) (*DismissNotificationsResponse, error) {
	sessionID, err := sessionFromContext(ctx, req.session())
	if err != nil {
		return nil, err
	}
	if s.feed != nil {
		s.feed.Dismiss(sessionID)
	}
	return &DismissNotificationsResponse{}, nil
}

// ListOrders возвращает заказы сессии, новые первыми.
func (s *CartService) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	if s.checkout == nil {
		return nil, status.Error(codes.Unimplemented, "checkout is disabled")
	}

	var pageSize int
	if req != nil {
		pageSize = req.PageSize
	}
	if pageSize < 0 {
		return nil, status.Error(codes.InvalidArgument, "page_size must be >= 0")
	}
	if pageSize == 0 {
		pageSize = defaultListOrdersLimit
	}

	sessionID, err := sessionFromContext(ctx, req.session())
	if err != nil {
		return nil, err
	}

	orders, err := s.checkout.ListOrders(sessionID, pageSize)
	if err != nil {
		return nil, s.toStatus(err, "ListOrders")
	}

	result := make([]Order, 0, len(orders))
	for _, order := range orders {
		result = append(result, toOrder(order))
	}

	return &ListOrdersResponse{Orders: result}, nil
}

// loadCart определяет сессию, кладёт её в контекст для уведомлений
// и возвращает корзину сессии.
func (s *CartService) loadCart(ctx context.Context, requested, operation string) (context.Context, string, *cart.Store, error) {
	sessionID, err := sessionFromContext(ctx, requested)
	if err != nil {
		return ctx, "", nil, err
	}

	ctx = notify.ContextWithSession(ctx, sessionID)
	store, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return ctx, "", nil, s.toStatus(err, operation)
	}
	return ctx, sessionID, store, nil
}

// toStatus переводит доменные ошибки в gRPC-статусы.
func (s *CartService) toStatus(err error, operation string) error {
	var validationErr *checkout.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return status.Error(codes.InvalidArgument, validationErr.Error())
	case errors.Is(err, domain.ErrSessionRequired),
		errors.Is(err, domain.ErrQuantityInvalid),
		errors.Is(err, domain.ErrProductRequired),
		errors.Is(err, domain.ErrOrderIDRequired):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrCartEmpty):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	s.logger.WithError(err).WithField("operation", operation).Error("cart service request failed")
	return status.Error(codes.Internal, "internal error")
}

// sessionFromContext берёт сессию из запроса, а если её нет — из metadata x-session-id.
func sessionFromContext(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		for _, value := range md.Get(SessionHeader) {
			if value != "" {
				return value, nil
			}
		}
	}
	return "", status.Error(codes.InvalidArgument, domain.ErrSessionRequired.Error())
}

func toCart(sessionID string, store *cart.Store) Cart {
	lines := store.Lines()
	return Cart{
		SessionID: sessionID,
		Lines:     lines,
		Total:     domain.CartTotal(lines).StringFixed(2),
		Count:     domain.CartCount(lines),
	}
}

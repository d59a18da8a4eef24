package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName — полное имя gRPC-сервиса корзины.
const ServiceName = "artcart.v1.CartService"

// CartServiceServer — серверная сторона artcart.v1.CartService.
type CartServiceServer interface {
	GetCart(context.Context, *GetCartRequest) (*CartResponse, error)
	AddLine(context.Context, *AddLineRequest) (*CartResponse, error)
	RemoveLine(context.Context, *RemoveLineRequest) (*CartResponse, error)
	SetQuantity(context.Context, *SetQuantityRequest) (*CartResponse, error)
	ClearCart(context.Context, *ClearCartRequest) (*CartResponse, error)
	ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error)
	GetProduct(context.Context, *GetProductRequest) (*GetProductResponse, error)
	PlaceOrder(context.Context, *PlaceOrderRequest) (*PlaceOrderResponse, error)
	TrackOrder(context.Context, *TrackOrderRequest) (*TrackOrderResponse, error)
	ListNotifications(context.Context, *ListNotificationsRequest) (*ListNotificationsResponse, error)
	DismissNotifications(context.Context, *DismissNotificationsRequest) (*DismissNotificationsResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
}

// CartServiceDesc описывает сервис для grpc.Server без сгенерированного кода.
var CartServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CartServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetCart", Handler: unaryHandler("GetCart", CartServiceServer.GetCart)},
		{MethodName: "AddLine", Handler: unaryHandler("AddLine", CartServiceServer.AddLine)},
		{MethodName: "RemoveLine", Handler: unaryHandler("RemoveLine", CartServiceServer.RemoveLine)},
		{MethodName: "SetQuantity", Handler: unaryHandler("SetQuantity", CartServiceServer.SetQuantity)},
		{MethodName: "ClearCart", Handler: unaryHandler("ClearCart", CartServiceServer.ClearCart)},
		{MethodName: "ListProducts", Handler: unaryHandler("ListProducts", CartServiceServer.ListProducts)},
		{MethodName: "GetProduct", Handler: unaryHandler("GetProduct", CartServiceServer.GetProduct)},
		{MethodName: "PlaceOrder", Handler: unaryHandler("PlaceOrder", CartServiceServer.PlaceOrder)},
		{MethodName: "TrackOrder", Handler: unaryHandler("TrackOrder", CartServiceServer.TrackOrder)},
		{MethodName: "ListNotifications", Handler: unaryHandler("ListNotifications", CartServiceServer.ListNotifications)},
		{MethodName: "DismissNotifications", Handler: unaryHandler("DismissNotifications", CartServiceServer.DismissNotifications)},
		{MethodName: "ListOrders", Handler: unaryHandler("ListOrders", CartServiceServer.ListOrders)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "artcart/v1/cart.json",
}

// RegisterCartServiceServer регистрирует реализацию на сервере.
func RegisterCartServiceServer(s grpc.ServiceRegistrar, srv CartServiceServer) {
	s.RegisterService(&CartServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler[Req any, Resp any](method string, call func(CartServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CartServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CartServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// CartServiceClient — типизированный клиент artcart.v1.CartService.
type CartServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewCartServiceClient создаёт клиента поверх соединения.
// Все вызовы идут с JSON content-subtype.
func NewCartServiceClient(cc grpc.ClientConnInterface) *CartServiceClient {
	return &CartServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *CartServiceClient, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CartServiceClient) GetCart(ctx context.Context, in *GetCartRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c, "GetCart", in, opts)
}

func (c *CartServiceClient) AddLine(ctx context.Context, in *AddLineRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c, "AddLine", in, opts)
}

func (c *CartServiceClient) RemoveLine(ctx context.Context, in *RemoveLineRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c, "RemoveLine", in, opts)
}

func (c *CartServiceClient) SetQuantity(ctx context.Context, in *SetQuantityRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c, "SetQuantity", in, opts)
}

func (c *CartServiceClient) ClearCart(ctx context.Context, in *ClearCartRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	return invoke[CartResponse](ctx, c, "ClearCart", in, opts)
}

func (c *CartServiceClient) ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error) {
	return invoke[ListProductsResponse](ctx, c, "ListProducts", in, opts)
}

func (c *CartServiceClient) GetProduct(ctx context.Context, in *GetProductRequest, opts ...grpc.CallOption) (*GetProductResponse, error) {
	return invoke[GetProductResponse](ctx, c, "GetProduct", in, opts)
}

func (c *CartServiceClient) PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*PlaceOrderResponse, error) {
	return invoke[PlaceOrderResponse](ctx, c, "PlaceOrder", in, opts)
}

func (c *CartServiceClient) TrackOrder(ctx context.Context, in *TrackOrderRequest, opts ...grpc.CallOption) (*TrackOrderResponse, error) {
	return invoke[TrackOrderResponse](ctx, c, "TrackOrder", in, opts)
}

func (c *CartServiceClient) ListNotifications(ctx context.Context, in *ListNotificationsRequest, opts ...grpc.CallOption) (*ListNotificationsResponse, error) {
	return invoke[ListNotificationsResponse](ctx, c, "ListNotifications", in, opts)
}

func (c *CartServiceClient) DismissNotifications(ctx context.Context, in *DismissNotificationsRequest, opts ...grpc.CallOption) (*DismissNotificationsResponse, error) {
	return invoke[DismissNotificationsResponse](ctx, c, "DismissNotifications", in, opts)
}

func (c *CartServiceClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	return invoke[ListOrdersResponse](ctx, c, "ListOrders", in, opts)
}

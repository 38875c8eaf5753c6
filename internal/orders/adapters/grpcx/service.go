// Package grpcx exposes the order pipeline as the orders.v1.Orders gRPC
// service. Messages are JSON encoded.
package grpcx

import (
	"context"

	"google.golang.org/grpc"

	"github.com/jcmexdev/otel-orders/internal/catalog"
	"github.com/jcmexdev/otel-orders/internal/orders"
)

const serviceName = "orders.v1.Orders"

// Full method names.
const (
	PlaceOrderMethod   = "/" + serviceName + "/PlaceOrder"
	GetProductMethod   = "/" + serviceName + "/GetProduct"
	ListProductsMethod = "/" + serviceName + "/ListProducts"
)

// OrdersServer is the server API for the orders.v1.Orders service.
type OrdersServer interface {
	PlaceOrder(context.Context, *orders.OrderRequest) (*orders.OrderResult, error)
	GetProduct(context.Context, *GetProductRequest) (*catalog.Product, error)
	ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error)
}

// RegisterOrdersServer registers srv on s.
func RegisterOrdersServer(s grpc.ServiceRegistrar, srv OrdersServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*OrdersServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: placeOrderHandler},
		{MethodName: "GetProduct", Handler: getProductHandler},
		{MethodName: "ListProducts", Handler: listProductsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "orders/v1/orders.proto",
}

func placeOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(orders.OrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrdersServer).PlaceOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PlaceOrderMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrdersServer).PlaceOrder(ctx, req.(*orders.OrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getProductHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetProductRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrdersServer).GetProduct(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetProductMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrdersServer).GetProduct(ctx, req.(*GetProductRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listProductsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListProductsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrdersServer).ListProducts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListProductsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrdersServer).ListProducts(ctx, req.(*ListProductsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

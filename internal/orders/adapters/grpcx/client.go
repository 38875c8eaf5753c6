package grpcx

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/jcmexdev/otel-orders/internal/catalog"
	"github.com/jcmexdev/otel-orders/internal/orders"
)

// Client calls the orders.v1.Orders service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *Client) PlaceOrder(ctx context.Context, req *orders.OrderRequest, opts ...grpc.CallOption) (*orders.OrderResult, error) {
	out := new(orders.OrderResult)
	if err := c.invoke(ctx, PlaceOrderMethod, req, out, opts...); err != nil {
		return nil, fmt.Errorf("grpc PlaceOrder: %w", err)
	}
	return out, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64, opts ...grpc.CallOption) (*catalog.Product, error) {
	out := new(catalog.Product)
	if err := c.invoke(ctx, GetProductMethod, &GetProductRequest{ID: id}, out, opts...); err != nil {
		return nil, fmt.Errorf("grpc GetProduct: %w", err)
	}
	return out, nil
}

func (c *Client) ListProducts(ctx context.Context, opts ...grpc.CallOption) ([]catalog.Product, error) {
	out := new(ListProductsResponse)
	if err := c.invoke(ctx, ListProductsMethod, &ListProductsRequest{}, out, opts...); err != nil {
		return nil, fmt.Errorf("grpc ListProducts: %w", err)
	}
	return out.Products, nil
}

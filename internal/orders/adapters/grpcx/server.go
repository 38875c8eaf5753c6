package grpcx

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jcmexdev/otel-orders/internal/catalog"
	"github.com/jcmexdev/otel-orders/internal/orders"
	"github.com/jcmexdev/otel-orders/internal/pkg/interceptors"
	"github.com/jcmexdev/otel-orders/internal/pkg/telemetry"
)

type ordersServer struct {
	svc     *orders.Service
	catalog *catalog.Catalog
}

var _ OrdersServer = (*ordersServer)(nil)

// NewServer adapts svc to the gRPC service.
func NewServer(svc *orders.Service, c *catalog.Catalog) OrdersServer {
	return &ordersServer{svc: svc, catalog: c}
}

// NewGRPCServer builds a server with tracing, request ids and baggage
// enrichment installed, and srv registered.
func NewGRPCServer(srv OrdersServer, opts ...otelgrpc.Option) *grpc.Server {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler(opts...)),
		grpc.ChainUnaryInterceptor(
			interceptors.UnaryServerInterceptor(),
			interceptors.BaggageServerInterceptor(),
		),
	)
	RegisterOrdersServer(s, srv)
	return s
}

// PlaceOrder runs the pipeline synchronously. Rejected orders are returned as
// a result with Success=false, not as a gRPC error.
func (s *ordersServer) PlaceOrder(ctx context.Context, req *orders.OrderRequest) (*orders.OrderResult, error) {
	if req.UserID == "" {
		req.UserID = telemetry.BaggageValue(ctx, telemetry.BaggageUserID)
	}
	slog.InfoContext(ctx, "place order", "request_id", interceptors.GetIDFromContext(ctx))

	result := s.svc.ProcessOrder(ctx, *req)
	return &result, nil
}

func (s *ordersServer) GetProduct(_ context.Context, req *GetProductRequest) (*catalog.Product, error) {
	p, ok := s.catalog.Get(req.ID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "product %d not found", req.ID)
	}
	return &p, nil
}

func (s *ordersServer) ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error) {
	return &ListProductsResponse{Products: s.catalog.List()}, nil
}

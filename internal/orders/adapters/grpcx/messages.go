package grpcx

import "github.com/jcmexdev/otel-orders/internal/catalog"

type GetProductRequest struct {
	ID int64 `json:"id"`
}

type ListProductsRequest struct{}

type ListProductsResponse struct {
	Products []catalog.Product `json:"products"`
}

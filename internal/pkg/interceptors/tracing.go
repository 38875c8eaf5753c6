package interceptors

import (
	"context"

	"google.golang.org/grpc"

	"github.com/jcmexdev/otel-orders/internal/pkg/interceptors/constants"
	"github.com/jcmexdev/otel-orders/internal/pkg/telemetry"
)

// BaggageServerInterceptor adds the caller identity to the baggage. A
// x-user-id metadata value wins over a user.id member that arrived through
// the propagated baggage header.
func BaggageServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		kv := []string{"client.type", "grpc", "endpoint", info.FullMethod}
		if user := GetMetadataValue(ctx, constants.HeaderXUserID); user != "" {
			kv = append(kv, telemetry.BaggageUserID, user)
		}
		return handler(telemetry.WithBaggage(ctx, kv...), req)
	}
}

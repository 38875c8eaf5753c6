package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/jcmexdev/otel-orders/internal/pkg/interceptors/constants"
)

// UnaryServerInterceptor makes sure every call carries a request id. The id
// is taken from the x-request-id metadata or generated, stored in the
// context, echoed in the response header and attached to the server span.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		requestID := GetMetadataValue(ctx, constants.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx = context.WithValue(ctx, constants.ContextKeyRequestID, requestID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(constants.HeaderXRequestID, requestID))
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("request.id", requestID))

		start := time.Now()
		resp, err := handler(ctx, req)
		slog.InfoContext(ctx, "grpc call",
			"method", info.FullMethod,
			"request_id", requestID,
			"code", status.Code(err).String(),
			"duration", time.Since(start))
		return resp, err
	}
}

// UnaryClientInterceptor forwards the request id found in ctx.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		return invoker(ContextWithPropagatedID(ctx), method, req, reply, cc, opts...)
	}
}

// GetIDFromContext returns the request id of ctx or "unknown".
func GetIDFromContext(ctx context.Context) string {
	if id := GetMetadataValue(ctx, constants.HeaderXRequestID); id != "" {
		return id
	}
	return "unknown"
}

// ContextWithPropagatedID copies the request id of ctx, if any, to the
// outgoing metadata.
func ContextWithPropagatedID(ctx context.Context) context.Context {
	id := GetMetadataValue(ctx, constants.HeaderXRequestID)
	if id == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, constants.HeaderXRequestID, id)
}

// GetMetadataValue looks key up in the context values first, then in the
// incoming and outgoing metadata.
func GetMetadataValue(ctx context.Context, key string) string {
	if key == constants.HeaderXRequestID {
		if id, ok := ctx.Value(constants.ContextKeyRequestID).(string); ok {
			return id
		}
	}

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(key); len(ids) > 0 {
			return ids[0]
		}
	}

	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		if ids := md.Get(key); len(ids) > 0 {
			return ids[0]
		}
	}
	return ""
}

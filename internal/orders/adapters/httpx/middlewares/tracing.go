// Package middlewares holds the chi middlewares that put the trace, the
// request id and the caller identity into the request context.
package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/otel-orders/internal/pkg/interceptors/constants"
	"github.com/jcmexdev/otel-orders/internal/pkg/telemetry"
)

const (
	// HeaderUserID carries the caller identity.
	HeaderUserID = "X-User-ID"

	AnonymousUser = "anonymous"
)

// AttachTracingMetadata copies the chi request id into the context under the
// key the gRPC interceptors read, and echoes it in the response.
func AttachTracingMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		ctx := context.WithValue(r.Context(), constants.ContextKeyRequestID, requestID)
		w.Header().Set(middleware.RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Tracing opens a SERVER span per request through otelhttp, continuing any
// trace and baggage found in the incoming headers. Spans start as
// "METHOD path"; RequestBaggage renames them to the matched route.
func Tracing(opts ...otelhttp.Option) func(http.Handler) http.Handler {
	opts = append([]otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	}, opts...)
	return otelhttp.NewMiddleware("orders", opts...)
}

// RequestBaggage derives the request baggage: user.id from X-User-ID (or
// propagated baggage, or anonymous), endpoint and client.type. Once the
// request is routed it names the span after the route pattern and marks
// responses with a status >= 400 as failed.
func RequestBaggage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.String("request.id", middleware.GetReqID(ctx)))

		user := r.Header.Get(HeaderUserID)
		if user != "" {
			span.SetAttributes(attribute.String("user.id", user))
		} else if user = telemetry.BaggageValue(ctx, telemetry.BaggageUserID); user == "" {
			user = AnonymousUser
		}
		ctx = telemetry.WithBaggage(ctx,
			telemetry.BaggageUserID, user,
			"endpoint", r.Method+" "+r.URL.Path,
			"client.type", "rest_api",
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		if rctx := chi.RouteContext(ctx); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				if len(pattern) > 1 {
					pattern = strings.TrimSuffix(pattern, "/")
				}
				span.SetName(r.Method + " " + pattern)
				span.SetAttributes(attribute.String("http.route", pattern))
			}
		}

		// otelhttp leaves 4xx server spans unset; an earlier Error or Ok wins.
		if status := ww.Status(); status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(status))
		} else {
			span.SetStatus(codes.Ok, "")
		}
	})
}

package httpx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/otel-orders/internal/orders/adapters/httpx/middlewares"
)

// NewRouter mounts the order API under /orders. metrics, when not nil, is
// served on /metrics outside the tracing middleware. opts configure the
// otelhttp server instrumentation.
func NewRouter(handler *Handler, metrics http.Handler, opts ...otelhttp.Option) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/orders", func(r chi.Router) {
		r.Use(middlewares.Tracing(opts...))
		r.Use(middlewares.AttachTracingMetadata)
		r.Use(middlewares.RequestBaggage)

		r.Post("/", handler.PlaceOrder)
		r.Post("/async", handler.PlaceOrderAsync)
		r.Get("/health", handler.Health)
		r.Get("/products", handler.ListProducts)
		r.Get("/products/{productId}", handler.GetProduct)
		r.Put("/products/{productId}/stock", handler.UpdateStock)
		r.Get("/journal/{traceId}", handler.JournalByTrace)
		r.Get("/pipelines/{pipelineId}", handler.Pipeline)
		r.Get("/{orderId}", handler.GetOrder)
	})
	return r
}

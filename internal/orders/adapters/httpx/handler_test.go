package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/otel-orders/internal/catalog"
	"github.com/jcmexdev/otel-orders/internal/coordinator/journal"
	"github.com/jcmexdev/otel-orders/internal/coordinator/journal/sqlite"
	"github.com/jcmexdev/otel-orders/internal/inventory"
	"github.com/jcmexdev/otel-orders/internal/orders"
	"github.com/jcmexdev/otel-orders/internal/pkg/cache"
	"github.com/jcmexdev/otel-orders/internal/pkg/telemetry"
	"github.com/jcmexdev/otel-orders/internal/pkg/telemetry/telemetrytest"
)

type testEnv struct {
	router  http.Handler
	ledger  *inventory.Ledger
	spans   *telemetrytest.Spans
	payUser atomic.Value
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{spans: telemetrytest.NewSpans()}
	m := telemetrytest.NewMetrics()

	ledger, err := inventory.NewLedger(m.Meter())
	require.NoError(t, err)
	c, err := catalog.New(ledger, m.Meter())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.SeedDefaults(context.Background(), 100))
	env.ledger = ledger

	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	svc := orders.NewService(c, ledger, env.spans.Tracer(),
		orders.WithSleep(func(time.Duration) {}),
		orders.WithJournal(repo),
		orders.WithResultStore(orders.NewCachedResults(cache.NewMemoryCache("test"), time.Hour)),
		orders.WithPayments(orders.PaymentFunc(func(ctx context.Context, _ decimal.Decimal) (orders.PaymentReceipt, error) {
			env.payUser.Store(telemetry.BaggageValue(ctx, telemetry.BaggageUserID))
			return orders.PaymentReceipt{Approved: true}, nil
		})),
	)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
	env.router = NewRouter(NewHandler(svc, c, WithJournalReader(repo)), metrics, env.otelOptions()...)
	return env
}

func (e *testEnv) otelOptions() []otelhttp.Option {
	return []otelhttp.Option{
		otelhttp.WithTracerProvider(e.spans.Provider),
		otelhttp.WithPropagators(telemetry.Propagator()),
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestPlaceOrder_Success(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/orders", `{"productId":1,"quantity":2}`, map[string]string{"X-User-ID": "alice"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	result := decode[orders.OrderResult](t, rec)
	assert.True(t, result.Success)
	assert.True(t, result.TotalAmount.Equal(decimal.RequireFromString("1999.98")))
	assert.Equal(t, int64(98), result.RemainingStock)
	assert.Equal(t, "alice", env.payUser.Load())

	httpSpans := env.spans.Named("POST /orders")
	require.Len(t, httpSpans, 1)
	assert.Equal(t, trace.SpanKindServer, httpSpans[0].SpanKind())
	assert.Equal(t, codes.Ok, httpSpans[0].Status().Code)
	assert.Equal(t, rec.Header().Get(middleware.RequestIDHeader), telemetrytest.Attr(httpSpans[0], "request.id").AsString())
	assert.Equal(t, "alice", telemetrytest.Attr(httpSpans[0], "user.id").AsString())
	assert.Equal(t, result.OrderID, telemetrytest.Attr(httpSpans[0], "order.id").AsString())

	roots := env.spans.Named(orders.SpanProcess)
	require.Len(t, roots, 1)
	assert.Equal(t, httpSpans[0].SpanContext().SpanID(), roots[0].Parent().SpanID())
}

func TestPlaceOrder_Rejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/orders", `{"productId":999,"quantity":1}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	result := decode[orders.OrderResult](t, rec)
	assert.Equal(t, orders.OutcomeProductNotFound, result.Outcome)
	assert.Equal(t, "Product not found: 999", result.Message)

	httpSpans := env.spans.Named("POST /orders")
	require.Len(t, httpSpans, 1)
	assert.Equal(t, codes.Error, httpSpans[0].Status().Code)
}

func TestPlaceOrder_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/orders", `{"productId":`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decode[ErrorResponse](t, rec).Error)
	assert.Empty(t, env.spans.Named(orders.SpanProcess))
}

func TestPlaceOrder_ContinuesIncomingTrace(t *testing.T) {
	env := newTestEnv(t)

	ctx := telemetry.WithBaggage(context.Background(), telemetry.BaggageUserID, "bob")
	ctx, parent := env.spans.Tracer().Start(ctx, "upstream")
	header := http.Header{}
	telemetry.Propagator().Inject(ctx, propagation.HeaderCarrier(header))
	parent.End()

	rec := env.do(t, http.MethodPost, "/orders", `{"productId":3,"quantity":1}`, map[string]string{
		"traceparent": header.Get("traceparent"),
		"baggage":     header.Get("baggage"),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	roots := env.spans.Named(orders.SpanProcess)
	require.Len(t, roots, 1)
	assert.Equal(t, parent.SpanContext().TraceID(), roots[0].SpanContext().TraceID())
	assert.Equal(t, "bob", env.payUser.Load())
}

func TestPlaceOrderAsync(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/orders/async", `{"productId":2,"quantity":4}`, map[string]string{"X-User-ID": "carol"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[orders.OrderResult](t, rec)
	assert.True(t, result.Success)
	assert.Equal(t, int64(96), result.RemainingStock)
	assert.Equal(t, "carol", env.payUser.Load())

	httpSpans := env.spans.Named("POST /orders/async")
	require.Len(t, httpSpans, 1)
	async := env.spans.Named(orders.SpanProcessAsync)
	require.Len(t, async, 1)
	assert.Equal(t, httpSpans[0].SpanContext().SpanID(), async[0].Parent().SpanID())
}

func TestGetOrder(t *testing.T) {
	env := newTestEnv(t)

	placed := decode[orders.OrderResult](t, env.do(t, http.MethodPost, "/orders", `{"productId":1,"quantity":1}`, nil))
	require.True(t, placed.Success)

	rec := env.do(t, http.MethodGet, "/orders/"+placed.OrderID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, placed.OrderID, decode[orders.OrderResult](t, rec).OrderID)

	rec = env.do(t, http.MethodGet, "/orders/ORD0_0", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProducts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/orders/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	products := decode[[]catalog.Product](t, rec)
	require.Len(t, products, 3)
	assert.Equal(t, "AirPods Pro", products[2].Name)

	rec = env.do(t, http.MethodGet, "/orders/products/2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MacBook Pro M3", decode[catalog.Product](t, rec).Name)

	spans := env.spans.Named("GET /orders/products/{productId}")
	require.Len(t, spans, 1)
	assert.Equal(t, "/orders/products/{productId}", telemetrytest.Attr(spans[0], "http.route").AsString())

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/orders/products/77", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/orders/products/abc", "", nil).Code)
}

func TestUpdateStock(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/orders/products/1/stock?stock=7", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[StockUpdateResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "iPhone 15 Pro", resp.ProductName)
	assert.Equal(t, int64(7), resp.NewStock)
	assert.Equal(t, int64(7), env.ledger.CurrentStock(1))

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/orders/products/1/stock?stock=x", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/orders/products/1/stock?stock=-1", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/orders/products/50/stock?stock=1", "", nil).Code)
	assert.Equal(t, int64(7), env.ledger.CurrentStock(1))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/orders/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "UP", health.Status)
	assert.Equal(t, 3, health.TotalProducts)
	assert.Equal(t, int64(300), health.TotalStock)
	assert.Len(t, health.TraceID, 32)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
	assert.Empty(t, env.spans.Recorder.Ended())
}

func TestRouter_LogsRequests(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/orders/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, buf.String(), "GET http://example.com/orders/health")
	assert.Contains(t, buf.String(), "- 200")
}

func TestJournal(t *testing.T) {
	env := newTestEnv(t)

	ctx, parent := env.spans.Tracer().Start(context.Background(), "upstream")
	header := http.Header{}
	telemetry.Propagator().Inject(ctx, propagation.HeaderCarrier(header))
	parent.End()
	traceID := parent.SpanContext().TraceID().String()

	rec := env.do(t, http.MethodPost, "/orders", `{"productId":1,"quantity":1}`, map[string]string{"traceparent": header.Get("traceparent")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/orders/journal/"+traceID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entries := decode[[]JournalEntryResponse](t, rec)
	require.Len(t, entries, 6)
	assert.Equal(t, string(journal.StatusStarted), entries[0].Status)
	assert.Contains(t, entries[0].Payload, `"productId":1`)
	assert.Equal(t, string(journal.StatusCompleted), entries[5].Status)
	for _, e := range entries {
		assert.Equal(t, traceID, e.TraceID)
		assert.Equal(t, entries[0].PipelineID, e.PipelineID)
		assert.Empty(t, e.Errors)
	}

	rec = env.do(t, http.MethodGet, "/orders/pipelines/"+entries[0].PipelineID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pipeline := decode[PipelineResponse](t, rec)
	assert.Equal(t, string(journal.StatusCompleted), pipeline.Status)
	assert.Len(t, pipeline.History, 6)

	spans := env.spans.Named("GET /orders/journal/{traceId}")
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
}

func TestJournal_Failures(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/orders/journal/0123456789abcdef0123456789abcdef", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "trace_not_found", decode[ErrorResponse](t, rec).Error)

	rec = env.do(t, http.MethodGet, "/orders/journal/not-a-trace", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/orders/pipelines/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "pipeline_not_found", decode[ErrorResponse](t, rec).Error)

	spans := env.spans.Named("GET /orders/pipelines/{pipelineId}")
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	disabled := NewRouter(NewHandler(nil, nil), nil, env.otelOptions()...)
	rec = httptest.NewRecorder()
	disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/journal/0123456789abcdef0123456789abcdef", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "journal_disabled", decode[ErrorResponse](t, rec).Error)
}

// Package httpx is the REST surface of the order service.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/otel-orders/internal/catalog"
	"github.com/jcmexdev/otel-orders/internal/coordinator/journal"
	"github.com/jcmexdev/otel-orders/internal/inventory"
	"github.com/jcmexdev/otel-orders/internal/orders"
	"github.com/jcmexdev/otel-orders/internal/orders/adapters/httpx/middlewares"
	"github.com/jcmexdev/otel-orders/internal/pkg/telemetry"
)

// Handler serves the order and product endpoints.
type Handler struct {
	svc     *orders.Service
	catalog *catalog.Catalog
	journal journal.Reader
	now     func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithJournalReader enables the journal endpoints.
func WithJournalReader(r journal.Reader) HandlerOption {
	return func(h *Handler) { h.journal = r }
}

// NewHandler returns a Handler backed by svc and c.
func NewHandler(svc *orders.Service, c *catalog.Catalog, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc, catalog: c, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// PlaceOrder runs the pipeline and answers 200 on success, 400 on a rejected
// order and 500 on an internal fault.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOrder(w, r)
	if !ok {
		return
	}
	slog.InfoContext(r.Context(), "received order request", "product_id", req.ProductID, "quantity", req.Quantity)

	result := h.svc.ProcessOrder(r.Context(), req)
	h.writeResult(w, r, result)
}

// PlaceOrderAsync schedules the pipeline and answers once it completes. The
// order keeps running if the client goes away.
func (h *Handler) PlaceOrderAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOrder(w, r)
	if !ok {
		return
	}
	slog.InfoContext(r.Context(), "received async order request", "product_id", req.ProductID, "quantity", req.Quantity)

	result, err := h.svc.ProcessOrderAsync(r.Context(), req).Wait(r.Context())
	if err != nil {
		slog.WarnContext(r.Context(), "client left before async order completed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "request_cancelled", err.Error())
		return
	}
	h.writeResult(w, r, result)
}

// GetOrder returns a stored successful order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	result, found, err := h.svc.FindOrder(r.Context(), orderID)
	if err != nil {
		slog.ErrorContext(r.Context(), "order lookup failed", "order_id", orderID, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "order_not_found", orderID)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products := h.catalog.List()
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int("products.count", len(products)))
	slog.DebugContext(r.Context(), "retrieved products", "count", len(products))
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(orders.AttrProductID.Int64(id))

	p, found := h.catalog.Get(id)
	if !found {
		slog.WarnContext(r.Context(), "product not found", "product_id", id)
		writeError(w, http.StatusNotFound, "product_not_found", "Product not found")
		return
	}
	span.SetAttributes(orders.AttrProductName.String(p.Name))
	writeJSON(w, http.StatusOK, p)
}

// UpdateStock overwrites the stock level of a product from the stock query
// parameter.
func (h *Handler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	stock, err := strconv.ParseInt(r.URL.Query().Get("stock"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_stock", "stock must be an integer")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(orders.AttrProductID.Int64(id), attribute.Int64("stock.new_value", stock))
	slog.InfoContext(r.Context(), "updating stock", "product_id", id, "stock", stock)

	p, found := h.catalog.Get(id)
	if !found {
		writeError(w, http.StatusNotFound, "product_not_found", "Product not found")
		return
	}

	if _, err := h.catalog.UpdateStock(r.Context(), id, stock); err != nil {
		if errors.Is(err, inventory.ErrNegativeStock) {
			writeError(w, http.StatusBadRequest, "invalid_stock", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "update_failed", "Error updating stock: "+err.Error())
		return
	}

	span.SetAttributes(orders.AttrProductName.String(p.Name))
	writeJSON(w, http.StatusOK, StockUpdateResponse{
		Success:     true,
		ProductID:   id,
		ProductName: p.Name,
		NewStock:    stock,
		Message:     "Stock updated successfully",
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	products := h.catalog.List()
	var total int64
	for _, p := range products {
		total += p.Stock
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "UP",
		Timestamp:     h.now().UnixMilli(),
		TraceID:       telemetry.ExtractTraceInfo(r.Context()).TraceID,
		TotalProducts: len(products),
		TotalStock:    total,
	})
}

// JournalByTrace lists the journal rows written under a trace id, oldest
// first.
func (h *Handler) JournalByTrace(w http.ResponseWriter, r *http.Request) {
	if !h.journalEnabled(w) {
		return
	}
	traceID, err := trace.TraceIDFromHex(chi.URLParam(r, "traceId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_trace_id", err.Error())
		return
	}

	entries, err := h.journal.ByTrace(r.Context(), traceID.String())
	if err != nil {
		slog.ErrorContext(r.Context(), "journal lookup failed", "trace_id", traceID.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "trace_not_found", traceID.String())
		return
	}
	writeJSON(w, http.StatusOK, newJournalEntries(entries))
}

// Pipeline returns the current state of one pipeline run and its history.
func (h *Handler) Pipeline(w http.ResponseWriter, r *http.Request) {
	if !h.journalEnabled(w) {
		return
	}
	pipelineID := chi.URLParam(r, "pipelineId")
	trace.SpanFromContext(r.Context()).SetAttributes(orders.AttrPipelineID.String(pipelineID))

	latest, err := h.journal.GetLatest(r.Context(), pipelineID)
	if errors.Is(err, journal.ErrNotFound) {
		writeError(w, http.StatusNotFound, "pipeline_not_found", pipelineID)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "journal lookup failed", "pipeline_id", pipelineID, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}
	history, err := h.journal.History(r.Context(), pipelineID)
	if err != nil {
		slog.ErrorContext(r.Context(), "journal lookup failed", "pipeline_id", pipelineID, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PipelineResponse{
		PipelineID:  pipelineID,
		Status:      string(latest.Status),
		CurrentStep: latest.CurrentStep,
		UpdatedAt:   latest.UpdatedAt,
		History:     newJournalEntries(history),
	})
}

func (h *Handler) journalEnabled(w http.ResponseWriter) bool {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, "journal_disabled", "order journal is not configured")
		return false
	}
	return true
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, result orders.OrderResult) {
	span := trace.SpanFromContext(r.Context())
	switch {
	case result.Success:
		span.SetAttributes(orders.AttrOrderID.String(result.OrderID))
		writeJSON(w, http.StatusOK, result)
	case result.Outcome == orders.OutcomeInternalError:
		span.SetAttributes(orders.AttrErrorMessage.String(result.Message))
		writeJSON(w, http.StatusInternalServerError, result)
	default:
		span.SetAttributes(orders.AttrErrorMessage.String(result.Message))
		writeJSON(w, http.StatusBadRequest, result)
	}
}

// decodeOrder reads the body. X-User-ID overrides the body's userId; a user
// that only arrived through propagated baggage fills it in.
func decodeOrder(w http.ResponseWriter, r *http.Request) (orders.OrderRequest, bool) {
	var req orders.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return req, false
	}
	if user := r.Header.Get(middlewares.HeaderUserID); user != "" {
		req.UserID = user
	}
	if req.UserID == "" {
		if user := telemetry.BaggageValue(r.Context(), telemetry.BaggageUserID); user != middlewares.AnonymousUser {
			req.UserID = user
		}
	}
	return req, true
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_product_id", "product id must be an integer")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}

// Package orders runs the instrumented order pipeline: validation, product
// lookup, simulated payment and inventory reservation, each traced as a child
// of one root span per request.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/otel-orders/internal/catalog"
	"github.com/jcmexdev/otel-orders/internal/coordinator"
	"github.com/jcmexdev/otel-orders/internal/coordinator/journal"
	"github.com/jcmexdev/otel-orders/internal/inventory"
	"github.com/jcmexdev/otel-orders/internal/pkg/telemetry"
)

// Service processes orders against a catalog and its ledger.
type Service struct {
	catalog *catalog.Catalog
	ledger  *inventory.Ledger
	tracer  trace.Tracer

	payments         PaymentProcessor
	paymentLatency   Latency
	inventoryLatency Latency
	sleep            func(time.Duration)
	now              func() time.Time
	ids              OrderIDs

	journal   journal.Repository
	results   ResultStore
	publisher Publisher

	slots    chan struct{}
	inflight sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithPayments replaces the simulated payment processor.
func WithPayments(p PaymentProcessor) Option {
	return func(s *Service) { s.payments = p }
}

// WithLatency sets the simulated processing delays of the payment and
// inventory stages.
func WithLatency(payment, inventory Latency) Option {
	return func(s *Service) {
		s.paymentLatency = payment
		s.inventoryLatency = inventory
	}
}

// WithSleep replaces time.Sleep for the simulated delays.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Service) { s.sleep = sleep }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithJournal records every stage transition in repo.
func WithJournal(repo journal.Repository) Option {
	return func(s *Service) { s.journal = repo }
}

// WithResultStore keeps successful results for FindOrder.
func WithResultStore(store ResultStore) Option {
	return func(s *Service) { s.results = store }
}

// WithPublisher emits an OrderPlaced event for every successful order.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithAsyncWorkers bounds how many async orders run at once.
func WithAsyncWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.slots = make(chan struct{}, n)
		}
	}
}

// NewService wires the pipeline. Without options payments succeed 95% of the
// time and the stages sleep 200-500ms (payment) and 100-300ms (inventory).
func NewService(c *catalog.Catalog, ledger *inventory.Ledger, tracer trace.Tracer, opts ...Option) *Service {
	s := &Service{
		catalog:          c,
		ledger:           ledger,
		tracer:           tracer,
		payments:         NewSimulatedPayments(0.95),
		paymentLatency:   Latency{Min: 200 * time.Millisecond, Max: 500 * time.Millisecond},
		inventoryLatency: Latency{Min: 100 * time.Millisecond, Max: 300 * time.Millisecond},
		sleep:            time.Sleep,
		now:              time.Now,
		slots:            make(chan struct{}, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessOrder runs the pipeline for req. It never panics and never returns
// an error: every outcome, including internal faults, is an OrderResult.
func (s *Service) ProcessOrder(ctx context.Context, req OrderRequest) OrderResult {
	userID := req.UserID
	if userID == "" {
		userID = anonymousUser
	}

	ctx, result := s.process(ctx, userID, req)
	s.afterOrder(ctx, userID, result)
	return result
}

// process runs the traced pipeline. The returned context carries the root
// span and the order baggage so the post-order hooks stay in the same trace.
func (s *Service) process(ctx context.Context, userID string, req OrderRequest) (outCtx context.Context, result OrderResult) {
	ctx, span := s.tracer.Start(ctx, SpanProcess, trace.WithSpanKind(trace.SpanKindServer))
	defer func() {
		if r := recover(); r != nil {
			outCtx, result = ctx, s.fault(ctx, span, fmt.Errorf("panic: %v", r))
		}
		span.End()
	}()

	if req.ProductID != nil {
		span.SetAttributes(AttrProductID.Int64(*req.ProductID))
	}
	if req.Quantity != nil {
		span.SetAttributes(AttrQuantity.Int(*req.Quantity))
	}
	span.SetAttributes(AttrUserID.String(userID))

	ctx = telemetry.WithBaggage(ctx,
		BaggageUserID, userID,
		BaggageOperationType, operationTypeProductOrder,
		BaggageRequestTimestamp, strconv.FormatInt(s.now().UnixMilli(), 10),
	)

	pipelineID := uuid.NewString()
	span.SetAttributes(AttrPipelineID.String(pipelineID))
	slog.InfoContext(ctx, "processing order",
		"pipeline_id", pipelineID,
		"product_id", req.ProductID,
		"quantity", req.Quantity,
		"user", userID)

	st := &orderState{req: req, root: span}
	steps := []coordinator.Step{
		&validateStep{st: st},
		&availabilityStep{svc: s, st: st},
		&paymentStep{svc: s, st: st},
		&reserveStep{svc: s, st: st},
	}

	var opts []coordinator.Option
	if s.journal != nil {
		payload, _ := json.Marshal(req)
		opts = append(opts, coordinator.WithJournal(s.journal, string(payload)))
	}

	err := coordinator.NewOrchestrator(pipelineID, s.tracer, steps, opts...).Start(ctx)

	var f *Failure
	switch {
	case errors.As(err, &f):
		return ctx, s.reject(ctx, span, f)
	case err != nil:
		return ctx, s.fault(ctx, span, err)
	}
	return ctx, s.finalize(ctx, span, st)
}

func (s *Service) finalize(ctx context.Context, span trace.Span, st *orderState) OrderResult {
	now := s.now()
	orderID := s.ids.Next(now)
	total := st.product.Price.Mul(decimal.NewFromInt(int64(st.quantity)))
	remaining := s.ledger.CurrentStock(st.product.ID)

	span.SetAttributes(
		AttrOrderID.String(orderID),
		AttrOperationResult.String(string(OutcomeSuccess)),
	)
	span.SetStatus(codes.Ok, "")
	slog.InfoContext(ctx, "order processed successfully", "order_id", orderID, "total", total.StringFixed(2))

	return OrderResult{
		Success:         true,
		Message:         "Order placed successfully",
		Outcome:         OutcomeSuccess,
		OrderID:         orderID,
		ProductID:       st.product.ID,
		ProductName:     st.product.Name,
		QuantityOrdered: st.quantity,
		TotalAmount:     total,
		RemainingStock:  remaining,
		OrderTime:       now,
	}
}

func (s *Service) reject(ctx context.Context, span trace.Span, f *Failure) OrderResult {
	span.SetAttributes(
		AttrOperationResult.String(string(f.Outcome)),
		AttrErrorMessage.String(f.Message),
	)
	span.SetStatus(codes.Error, f.Message)
	slog.WarnContext(ctx, "order rejected", "outcome", f.Outcome, "reason", f.Message)
	return failedResult(f.Outcome, f.Message, s.now())
}

func (s *Service) fault(ctx context.Context, span trace.Span, err error) OrderResult {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		AttrOperationResult.String(string(OutcomeInternalError)),
		AttrErrorMessage.String(err.Error()),
	)
	slog.ErrorContext(ctx, "error processing order", "error", err)
	return failedResult(OutcomeInternalError, "Internal server error: "+err.Error(), s.now())
}

// afterOrder stores and announces successful orders. Failures here, panics
// included, are logged and never change the result.
func (s *Service) afterOrder(ctx context.Context, userID string, result OrderResult) {
	if !result.Success {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "post-order hook panicked", "order_id", result.OrderID, "panic", r)
		}
	}()
	if s.results != nil {
		if err := s.results.Save(ctx, result); err != nil {
			slog.WarnContext(ctx, "failed to store order result", "order_id", result.OrderID, "error", err)
		}
	}
	if s.publisher != nil {
		body, err := json.Marshal(OrderPlaced{
			OrderID:     result.OrderID,
			ProductID:   result.ProductID,
			ProductName: result.ProductName,
			Quantity:    result.QuantityOrdered,
			TotalAmount: result.TotalAmount,
			UserID:      userID,
			PlacedAt:    result.OrderTime,
		})
		if err == nil {
			err = s.publisher.Publish(ctx, body)
		}
		if err != nil {
			slog.WarnContext(ctx, "failed to publish order event", "order_id", result.OrderID, "error", err)
		}
	}
}

// FindOrder returns a previously stored successful result.
func (s *Service) FindOrder(ctx context.Context, orderID string) (OrderResult, bool, error) {
	if s.results == nil {
		return OrderResult{}, false, nil
	}
	return s.results.Find(ctx, orderID)
}

package orders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/otel-orders/internal/catalog"
	"github.com/jcmexdev/otel-orders/internal/pkg/telemetry"
)

// orderState is shared by the steps of one pipeline execution. Steps run
// sequentially, so it needs no locking.
type orderState struct {
	req      OrderRequest
	root     trace.Span
	quantity int
	product  catalog.Product
	amount   decimal.Decimal
}

// reject tags the step span and returns the failure.
func reject(span trace.Span, result string, f *Failure) *Failure {
	span.SetAttributes(
		AttrOperationResult.String(result),
		AttrErrorMessage.String(f.Message),
	)
	return f
}

type validateStep struct {
	st *orderState
}

func (s *validateStep) Name() string { return SpanValidate }

func (s *validateStep) Execute(ctx context.Context) error {
	span := trace.SpanFromContext(ctx)
	req := s.st.req
	slog.DebugContext(ctx, "validating order request", "request", req)

	if req.ProductID == nil {
		return reject(span, "invalid", failure(OutcomeValidationFailed, "Product ID is required"))
	}
	if req.Quantity == nil || *req.Quantity <= 0 {
		return reject(span, "invalid", failure(OutcomeValidationFailed, "Valid quantity is required"))
	}
	if *req.Quantity > MaxQuantity {
		return reject(span, "invalid", failure(OutcomeValidationFailed, fmt.Sprintf("Quantity cannot exceed %d items per order", MaxQuantity)))
	}

	s.st.quantity = *req.Quantity
	span.SetAttributes(AttrOperationResult.String("success"))
	return nil
}

type availabilityStep struct {
	svc *Service
	st  *orderState
}

func (s *availabilityStep) Name() string { return SpanCheckAvailability }

func (s *availabilityStep) Execute(ctx context.Context) error {
	span := trace.SpanFromContext(ctx)
	id := *s.st.req.ProductID
	span.SetAttributes(AttrProductID.Int64(id))

	product, ok := s.svc.catalog.Get(id)
	if !ok {
		slog.WarnContext(ctx, "product not found", "product_id", id)
		return reject(span, "not_found", failure(OutcomeProductNotFound, fmt.Sprintf("Product not found: %d", id)))
	}

	span.SetAttributes(
		AttrProductName.String(product.Name),
		AttrOperationResult.String("found"),
	)
	s.st.root.SetAttributes(AttrProductName.String(product.Name))
	s.st.product = product

	slog.DebugContext(ctx, "product found",
		"product_name", product.Name,
		"stock", product.Stock,
		"baggage_user", telemetry.BaggageValue(ctx, BaggageUserID))
	return nil
}

type paymentStep struct {
	svc *Service
	st  *orderState
}

func (s *paymentStep) Name() string { return SpanPayment }

func (s *paymentStep) Execute(ctx context.Context) error {
	span := trace.SpanFromContext(ctx)
	amount := s.st.product.Price.Mul(decimal.NewFromInt(int64(s.st.quantity)))
	s.st.amount = amount

	span.SetAttributes(
		AttrProductID.Int64(s.st.product.ID),
		AttrQuantity.Int(s.st.quantity),
		AttrPaymentAmount.String(amount.StringFixed(2)),
		AttrPaymentCurrency.String("USD"),
	)

	s.svc.sleep(s.svc.paymentLatency.pick())

	receipt, err := s.svc.payments.Charge(ctx, amount)
	if err != nil {
		return fmt.Errorf("payment: charge %s: %w", amount.StringFixed(2), err)
	}
	span.SetAttributes(AttrPaymentTxID.String(receipt.TransactionID))

	if !receipt.Approved {
		slog.WarnContext(ctx, "payment processing failed", "amount", amount.StringFixed(2))
		return reject(span, "failed", failure(OutcomePaymentFailed, "Payment processing failed"))
	}

	span.SetAttributes(AttrOperationResult.String("success"))
	slog.InfoContext(ctx, "payment processed", "amount", amount.StringFixed(2), "transaction_id", receipt.TransactionID)
	return nil
}

type reserveStep struct {
	svc *Service
	st  *orderState
}

func (s *reserveStep) Name() string { return SpanInventoryReserve }

func (s *reserveStep) Execute(ctx context.Context) error {
	span := trace.SpanFromContext(ctx)
	p := s.st.product
	span.SetAttributes(
		AttrProductID.Int64(p.ID),
		AttrQuantity.Int(s.st.quantity),
	)

	s.svc.sleep(s.svc.inventoryLatency.pick())

	if !s.svc.ledger.Reserve(ctx, p.ID, int64(s.st.quantity)) {
		return reject(span, "failed", failure(OutcomeInsufficientInventory, "Insufficient inventory for product: "+p.Name))
	}

	span.SetAttributes(AttrOperationResult.String("success"))
	return nil
}

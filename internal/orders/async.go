package orders

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Future is the pending result of an order scheduled with ProcessOrderAsync.
type Future struct {
	done   chan struct{}
	result OrderResult
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(r OrderResult) {
	f.result = r
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the order finishes or ctx is done. Cancelling ctx stops
// the wait, not the order.
func (f *Future) Wait(ctx context.Context) (OrderResult, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return OrderResult{}, ctx.Err()
	}
}

// Result returns the result if it is ready.
func (f *Future) Result() (OrderResult, bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return OrderResult{}, false
	}
}

// Then runs fn on its own goroutine once the result is ready.
func (f *Future) Then(fn func(OrderResult)) {
	go func() {
		<-f.done
		fn(f.result)
	}()
}

// ProcessOrderAsync schedules req on a worker and returns immediately. The
// order.process_async span is opened here, in the caller's context, and ended
// by the worker once the pipeline finishes. The worker inherits the caller's
// span and baggage but not its cancellation.
func (s *Service) ProcessOrderAsync(ctx context.Context, req OrderRequest) *Future {
	ctx, span := s.tracer.Start(ctx, SpanProcessAsync, trace.WithSpanKind(trace.SpanKindInternal))
	if req.ProductID != nil {
		span.SetAttributes(AttrProductID.Int64(*req.ProductID))
	}
	if req.Quantity != nil {
		span.SetAttributes(AttrQuantity.Int(*req.Quantity))
	}

	detached := context.WithoutCancel(ctx)
	future := newFuture()

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		s.slots <- struct{}{}
		defer func() { <-s.slots }()

		result := s.ProcessOrder(detached, req)

		span.SetAttributes(AttrOperationResult.String(string(result.Outcome)))
		if result.Success {
			span.SetAttributes(AttrOrderID.String(result.OrderID))
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, result.Message)
		}
		span.End()

		slog.DebugContext(detached, "async order completed", "outcome", result.Outcome)
		future.complete(result)
	}()

	return future
}

// Shutdown waits for scheduled async orders to finish or for ctx to end.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package inventory holds the authoritative per-product stock counts.
//
// Reservations are lock-free: each entry is an atomic counter that is only
// decremented through a compare-and-swap loop, so concurrent reservations can
// never take a count below zero.
package inventory

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrNegativeStock is returned when a stock level below zero is requested.
var ErrNegativeStock = errors.New("inventory: stock must not be negative")

// Metric outcome labels.
const (
	ResultSuccess           = "success"
	ResultInsufficientStock = "insufficient_stock"
	ResultProductNotFound   = "product_not_found"

	OperationAddProduct   = "add_product"
	OperationManualUpdate = "manual_update"
)

type entry struct {
	productID int64
	name      atomic.Pointer[string]
	count     atomic.Int64
}

func (e *entry) label() string { return *e.name.Load() }

// Ledger maps product ids to mutable stock counts.
type Ledger struct {
	mu      sync.RWMutex
	entries map[int64]*entry

	purchases    metric.Int64Counter
	stockUpdates metric.Int64Counter
}

// NewLedger creates an empty ledger whose counters are registered on meter.
func NewLedger(meter metric.Meter) (*Ledger, error) {
	purchases, err := meter.Int64Counter("product_purchase_count",
		metric.WithUnit("1"),
		metric.WithDescription("Number of product purchase attempts"),
	)
	if err != nil {
		return nil, err
	}
	stockUpdates, err := meter.Int64Counter("product_stock_update_count",
		metric.WithUnit("1"),
		metric.WithDescription("Number of stock update operations"),
	)
	if err != nil {
		return nil, err
	}

	return &Ledger{
		entries:      make(map[int64]*entry),
		purchases:    purchases,
		stockUpdates: stockUpdates,
	}, nil
}

// Track sets a product's stock level, creating its entry on first use. An
// existing entry is updated in place so reservations already holding it keep
// operating on the live count.
func (l *Ledger) Track(ctx context.Context, productID int64, name string, stock int64) error {
	if stock < 0 {
		return ErrNegativeStock
	}

	l.mu.Lock()
	e, ok := l.entries[productID]
	if !ok {
		e = &entry{productID: productID}
		l.entries[productID] = e
	}
	e.name.Store(&name)
	e.count.Store(stock)
	l.mu.Unlock()

	l.stockUpdates.Add(ctx, 1, metric.WithAttributes(
		productAttrs(e, attribute.String("operation", OperationAddProduct))...,
	))
	return nil
}

// Reserve atomically takes quantity units out of the product's stock. It
// returns false without touching the ledger when quantity is not positive,
// the product is unknown or the stock cannot cover the quantity.
func (l *Ledger) Reserve(ctx context.Context, productID int64, quantity int64) bool {
	if quantity <= 0 {
		slog.WarnContext(ctx, "rejected non-positive reservation", "product_id", productID, "quantity", quantity)
		return false
	}
	e := l.lookup(productID)
	if e == nil {
		l.purchases.Add(ctx, 1, metric.WithAttributes(
			attribute.String("product_id", strconv.FormatInt(productID, 10)),
			attribute.String("result", ResultProductNotFound),
		))
		return false
	}

	// Unbounded: a lost CAS means another reservation or SetStock won.
	for {
		current := e.count.Load()
		if current < quantity {
			l.purchases.Add(ctx, 1, metric.WithAttributes(
				productAttrs(e, attribute.String("result", ResultInsufficientStock))...,
			))
			slog.WarnContext(ctx, "insufficient stock",
				"product_id", productID, "product_name", e.label(),
				"requested", quantity, "available", current)
			return false
		}
		if e.count.CompareAndSwap(current, current-quantity) {
			l.purchases.Add(ctx, 1, metric.WithAttributes(
				productAttrs(e, attribute.String("result", ResultSuccess))...,
			))
			slog.InfoContext(ctx, "stock reserved",
				"product_id", productID, "product_name", e.label(),
				"quantity", quantity, "remaining", current-quantity)
			return true
		}
	}
}

// SetStock overwrites the stock level regardless of concurrent reservations.
// It reports whether the product is known.
func (l *Ledger) SetStock(ctx context.Context, productID int64, value int64) (bool, error) {
	if value < 0 {
		return false, ErrNegativeStock
	}
	e := l.lookup(productID)
	if e == nil {
		return false, nil
	}

	old := e.count.Swap(value)
	l.stockUpdates.Add(ctx, 1, metric.WithAttributes(
		productAttrs(e, attribute.String("operation", OperationManualUpdate))...,
	))
	slog.InfoContext(ctx, "stock updated",
		"product_id", productID, "product_name", e.label(), "old", old, "new", value)
	return true, nil
}

// CurrentStock returns the point-in-time stock level, 0 for unknown ids.
func (l *Ledger) CurrentStock(productID int64) int64 {
	if e := l.lookup(productID); e != nil {
		return e.count.Load()
	}
	return 0
}

// Len returns the number of tracked products.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Ledger) lookup(productID int64) *entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[productID]
}

func productAttrs(e *entry, extra attribute.KeyValue) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("product_id", strconv.FormatInt(e.productID, 10)),
		attribute.String("product_name", e.label()),
		extra,
	}
}

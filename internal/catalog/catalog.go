// Package catalog stores product metadata and reports live stock levels from
// the inventory ledger.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jcmexdev/otel-orders/internal/inventory"
)

// Catalog maps product ids to metadata. Stock values always come from the
// ledger at read time.
type Catalog struct {
	ledger *inventory.Ledger

	mu       sync.RWMutex
	products map[int64]Product
	order    []int64

	registration metric.Registration
}

// New creates an empty catalog backed by ledger and registers the
// product_current_stock and product_total_count gauges on meter.
func New(ledger *inventory.Ledger, meter metric.Meter) (*Catalog, error) {
	c := &Catalog{
		ledger:   ledger,
		products: make(map[int64]Product),
	}

	currentStock, err := meter.Int64ObservableGauge("product_current_stock",
		metric.WithDescription("Current stock level for products"),
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: create product_current_stock gauge: %w", err)
	}
	totalCount, err := meter.Int64ObservableGauge("product_total_count",
		metric.WithDescription("Total number of products in the system"),
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: create product_total_count gauge: %w", err)
	}

	c.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		products := c.snapshot()
		for _, p := range products {
			o.ObserveInt64(currentStock, ledger.CurrentStock(p.ID), metric.WithAttributes(
				attribute.String("product_id", strconv.FormatInt(p.ID, 10)),
				attribute.String("product_name", p.Name),
			))
		}
		o.ObserveInt64(totalCount, int64(len(products)))
		return nil
	}, currentStock, totalCount)
	if err != nil {
		return nil, fmt.Errorf("catalog: register gauge callback: %w", err)
	}

	return c, nil
}

// Close unregisters the gauge callback.
func (c *Catalog) Close() error {
	return c.registration.Unregister()
}

// AddProduct inserts p and initialises its ledger entry at p.Stock.
func (c *Catalog) AddProduct(ctx context.Context, p Product) error {
	if err := c.ledger.Track(ctx, p.ID, p.Name, p.Stock); err != nil {
		return fmt.Errorf("catalog: add product %d: %w", p.ID, err)
	}

	c.mu.Lock()
	if _, exists := c.products[p.ID]; !exists {
		c.order = append(c.order, p.ID)
	}
	c.products[p.ID] = p
	c.mu.Unlock()

	slog.DebugContext(ctx, "product added", "product_id", p.ID, "product_name", p.Name, "stock", p.Stock)
	return nil
}

// Get returns the product with its stock refreshed from the ledger.
func (c *Catalog) Get(id int64) (Product, bool) {
	c.mu.RLock()
	p, ok := c.products[id]
	c.mu.RUnlock()
	if !ok {
		return Product{}, false
	}
	p.Stock = c.ledger.CurrentStock(id)
	return p, true
}

// List returns every product in insertion order with live stock values.
func (c *Catalog) List() []Product {
	products := c.snapshot()
	for i := range products {
		products[i].Stock = c.ledger.CurrentStock(products[i].ID)
	}
	return products
}

// UpdateStock overwrites the stock of a known product. It reports whether the
// product exists.
func (c *Catalog) UpdateStock(ctx context.Context, id int64, stock int64) (bool, error) {
	if _, ok := c.Get(id); !ok {
		return false, nil
	}
	return c.ledger.SetStock(ctx, id, stock)
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

func (c *Catalog) snapshot() []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.products[id])
	}
	return out
}

// SeedDefaults loads the demo products, each starting at initialStock.
func (c *Catalog) SeedDefaults(ctx context.Context, initialStock int64) error {
	defaults := []Product{
		{ID: 1, Name: "iPhone 15 Pro", Description: "Latest iPhone with advanced features", Price: decimal.RequireFromString("999.99"), Category: "Electronics"},
		{ID: 2, Name: "MacBook Pro M3", Description: "High-performance laptop for professionals", Price: decimal.RequireFromString("1999.99"), Category: "Electronics"},
		{ID: 3, Name: "AirPods Pro", Description: "Wireless earbuds with noise cancellation", Price: decimal.RequireFromString("249.99"), Category: "Electronics"},
	}
	for _, p := range defaults {
		p.Stock = initialStock
		if err := c.AddProduct(ctx, p); err != nil {
			return err
		}
	}
	slog.InfoContext(ctx, "sample products initialised", "count", len(defaults), "initial_stock", initialStock)
	return nil
}

package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jcmexdev/otel-orders/internal/inventory"
	"github.com/jcmexdev/otel-orders/internal/pkg/telemetry/telemetrytest"
)

func newTestCatalog(t *testing.T) (*Catalog, *inventory.Ledger, *telemetrytest.Metrics) {
	t.Helper()
	m := telemetrytest.NewMetrics()
	ledger, err := inventory.NewLedger(m.Meter())
	require.NoError(t, err)
	c, err := New(ledger, m.Meter())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, ledger, m
}

func TestSeedDefaults(t *testing.T) {
	c, _, m := newTestCatalog(t)
	require.NoError(t, c.SeedDefaults(context.Background(), 100))

	products := c.List()
	require.Len(t, products, 3)
	assert.Equal(t, "iPhone 15 Pro", products[0].Name)
	assert.Equal(t, "MacBook Pro M3", products[1].Name)
	assert.Equal(t, "AirPods Pro", products[2].Name)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("999.99")))
	for _, p := range products {
		assert.Equal(t, int64(100), p.Stock)
	}

	n, _ := m.Int64(t, "product_stock_update_count", attribute.String("operation", inventory.OperationAddProduct))
	assert.Equal(t, int64(3), n)
}

func TestGet_RefreshesStockFromLedger(t *testing.T) {
	ctx := context.Background()
	c, ledger, _ := newTestCatalog(t)
	require.NoError(t, c.SeedDefaults(ctx, 10))

	require.True(t, ledger.Reserve(ctx, 2, 4))

	p, ok := c.Get(2)
	require.True(t, ok)
	assert.Equal(t, int64(6), p.Stock)

	_, ok = c.Get(999)
	assert.False(t, ok)
}

func TestList_DoesNotMutateLedger(t *testing.T) {
	ctx := context.Background()
	c, ledger, _ := newTestCatalog(t)
	require.NoError(t, c.SeedDefaults(ctx, 10))

	before := ledger.CurrentStock(1)
	_ = c.List()
	_ = c.List()
	assert.Equal(t, before, ledger.CurrentStock(1))
}

func TestUpdateStock(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCatalog(t)
	require.NoError(t, c.SeedDefaults(ctx, 10))

	ok, err := c.UpdateStock(ctx, 3, 55)
	require.NoError(t, err)
	assert.True(t, ok)
	p, _ := c.Get(3)
	assert.Equal(t, int64(55), p.Stock)

	ok, err = c.UpdateStock(ctx, 42, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.UpdateStock(ctx, 3, -1)
	assert.ErrorIs(t, err, inventory.ErrNegativeStock)
}

func TestGauges_ReflectLedgerAtCollectionTime(t *testing.T) {
	ctx := context.Background()
	c, ledger, m := newTestCatalog(t)
	require.NoError(t, c.SeedDefaults(ctx, 100))

	stock, ok := m.Int64(t, "product_current_stock", attribute.String("product_id", "1"))
	require.True(t, ok)
	assert.Equal(t, int64(100), stock)

	require.True(t, ledger.Reserve(ctx, 1, 30))

	stock, _ = m.Int64(t, "product_current_stock",
		attribute.String("product_id", "1"),
		attribute.String("product_name", "iPhone 15 Pro"))
	assert.Equal(t, int64(70), stock)

	total, ok := m.Int64(t, "product_total_count")
	require.True(t, ok)
	assert.Equal(t, int64(3), total)
}

func TestAddProduct_KeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCatalog(t)

	for _, id := range []int64{30, 10, 20} {
		require.NoError(t, c.AddProduct(ctx, Product{ID: id, Name: "p", Price: decimal.NewFromInt(1), Stock: 1}))
	}
	// re-adding keeps the original position
	require.NoError(t, c.AddProduct(ctx, Product{ID: 10, Name: "p2", Price: decimal.NewFromInt(2), Stock: 5}))

	var ids []int64
	for _, p := range c.List() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int64{30, 10, 20}, ids)
	assert.Equal(t, 3, c.Len())

	p, _ := c.Get(10)
	assert.Equal(t, "p2", p.Name)
	assert.Equal(t, int64(5), p.Stock)
}

package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jcmexdev/otel-orders/internal/pkg/cache"
)

// cachedResults stores results as JSON in a cache.Cache.
type cachedResults struct {
	cache cache.Cache
	ttl   time.Duration
}

var _ ResultStore = (*cachedResults)(nil)

// NewCachedResults returns a ResultStore backed by c. Entries expire after ttl.
func NewCachedResults(c cache.Cache, ttl time.Duration) ResultStore {
	return &cachedResults{cache: c, ttl: ttl}
}

func (r *cachedResults) Save(ctx context.Context, result OrderResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("orders: marshal result %s: %w", result.OrderID, err)
	}
	return r.cache.Set(ctx, r.cache.GenerateKey("result", result.OrderID), string(body), r.ttl)
}

func (r *cachedResults) Find(ctx context.Context, orderID string) (OrderResult, bool, error) {
	raw, err := r.cache.Get(ctx, r.cache.GenerateKey("result", orderID))
	if err != nil {
		return OrderResult{}, false, fmt.Errorf("orders: load result %s: %w", orderID, err)
	}
	if raw == "" {
		return OrderResult{}, false, nil
	}

	var result OrderResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return OrderResult{}, false, fmt.Errorf("orders: decode result %s: %w", orderID, err)
	}
	return result, true, nil
}

// Package cache is a small key/value store used to keep order results
// around for lookup after the request that produced them has returned.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache stores string values with a per-entry ttl. Get returns an empty
// string and a nil error when the key is missing or expired.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GenerateKey(operation, key string) string
}

func generateKey(serviceName, operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", serviceName, operation, key)
}

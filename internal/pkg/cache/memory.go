package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryItem struct {
	value   string
	expires time.Time
}

// MemoryCache is an in-process Cache used when no redis address is
// configured. Expired entries are dropped lazily on read.
type MemoryCache struct {
	mu          sync.Mutex
	items       map[string]memoryItem
	serviceName string
	now         func() time.Time
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache(serviceName string) *MemoryCache {
	return &MemoryCache{
		items:       make(map[string]memoryItem),
		serviceName: serviceName,
		now:         time.Now,
	}
}

// Set stores value formatted with %v. A ttl <= 0 never expires.
func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	item := memoryItem{value: fmt.Sprint(value)}
	if ttl > 0 {
		item.expires = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.items[key] = item
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return "", nil
	}
	if !item.expires.IsZero() && !m.now().Before(item.expires) {
		delete(m.items, key)
		return "", nil
	}
	return item.value, nil
}

func (m *MemoryCache) GenerateKey(operation, key string) string {
	return generateKey(m.serviceName, operation, key)
}

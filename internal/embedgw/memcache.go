package embedgw

import (
	"context"
	"sync"
)

// MemCache is an in-process, non-persistent Cache: the default when no
// LanceDB cache directory is configured. Entries are lost on restart,
// which only costs a re-embed of previously-seen text, never
// correctness. Safe for concurrent use since a single Gateway (and its
// Cache) is shared across the coordinator's per-user worker pool.
type MemCache struct {
	mu   sync.Mutex
	data map[string][]float32
}

// NewMemCache builds an empty MemCache.
func NewMemCache() *MemCache {
	return &MemCache{data: make(map[string][]float32)}
}

func (c *MemCache) Get(_ context.Context, hash string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vec, ok := c.data[hash]
	return vec, ok, nil
}

func (c *MemCache) Put(_ context.Context, hash string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[hash] = vec
	return nil
}

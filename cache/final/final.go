// Package final implements the Final Cache: the outermost,
// time-quantized cache of a full Decision keyed by the already-quantized
// string engine.Checker computes. Because the key already folds in the
// time bucket, entries naturally go stale as the bucket rolls over; this
// cache still honors explicit Invalidate calls from the change-log
// invalidator so a write is reflected before the bucket would otherwise
// expire it.
package final

import (
	"context"
	"sync"

	"github.com/nexi-lab/nexus-sub005/engine"
)

type record struct {
	decision engine.Decision
	object   string
	relation string
	tenant   string
}

// Cache implements engine.FinalCache.
type Cache struct {
	mu    sync.RWMutex
	items map[string]record
}

func New() *Cache {
	return &Cache{items: make(map[string]record)}
}

func (c *Cache) Get(ctx context.Context, key string) (engine.Decision, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.items[key]
	if !ok {
		return engine.Decision{}, false
	}
	return r.decision, true
}

func (c *Cache) Set(ctx context.Context, key, tenant, object, relation string, d engine.Decision) {
	c.mu.Lock()
	c.items[key] = record{decision: d, tenant: tenant, object: object, relation: relation}
	c.mu.Unlock()
}

func (c *Cache) Invalidate(ctx context.Context, tenant, object, relation string) {
	c.mu.Lock()
	for k, r := range c.items {
		if r.tenant == tenant && r.object == object && r.relation == relation {
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
}

var _ engine.FinalCache = (*Cache)(nil)

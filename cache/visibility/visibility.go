// Package visibility implements the Directory Visibility Cache: for a
// (tenant, subject, objectType) triple, the list of object
// IDs visible to that subject across every relation that implies
// visibility, used by directory/listing endpoints that need "what can
// this subject see" rather than a single relation's bitmap (cache/tiger).
package visibility

import (
	"context"
	"sync"

	"github.com/nexi-lab/nexus-sub005/engine"
)

type visKey struct {
	tenant, subject, objectType string
}

// Cache implements engine.VisibilityCache.
type Cache struct {
	mu    sync.RWMutex
	items map[visKey][]string
}

func New() *Cache {
	return &Cache{items: make(map[visKey][]string)}
}

func (c *Cache) Set(tenant, subject, objectType string, objects []string) {
	c.mu.Lock()
	c.items[visKey{tenant, subject, objectType}] = objects
	c.mu.Unlock()
}

func (c *Cache) Visible(ctx context.Context, tenant, subject, objectType string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	objs, ok := c.items[visKey{tenant, subject, objectType}]
	return objs, ok
}

// Invalidate drops every cached listing for (tenant, subjectType,
// subject), whatever their objectType, because a grant of any
// object type to this subject could extend what listings of other types
// the subject indirectly sees via a userset membership, so we err toward
// dropping the subject's full cached state rather than risk a stale list.
func (c *Cache) Invalidate(ctx context.Context, tenant, subjectType, subject string) {
	c.mu.Lock()
	for k := range c.items {
		if k.tenant == tenant && k.subject == subjectType+":"+subject {
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
}

var _ engine.VisibilityCache = (*Cache)(nil)

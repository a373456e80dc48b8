// Package subproblem implements the Subproblem Cache: a sharded,
// TTL-scoped cache over (tenant, category, object, relation, subject)
// results, where category distinguishes membership, ancestry, and grant
// subproblems so each can carry its own TTL, with entries checked for
// expiry lazily on read rather than swept by a background goroutine.
package subproblem

import (
	"context"
	"sync"
	"time"

	"github.com/nexi-lab/nexus-sub005/engine"
)

const shardCount = 32

type key struct {
	tenant, category, object, relation, subject string
}

type entry struct {
	allowed   bool
	expiresAt time.Time
}

type shard struct {
	mu    sync.RWMutex
	items map[key]entry
}

// Cache implements engine.SubproblemCache with one TTL per category.
type Cache struct {
	shards [shardCount]*shard
	ttl    map[string]time.Duration // category -> TTL; 0 means no expiry
}

// New builds a Cache. ttlByCategory maps a category name ("membership",
// "ancestry", "grant") to its TTL; a category absent from the map never
// expires entries on its own (invalidation still removes them).
func New(ttlByCategory map[string]time.Duration) *Cache {
	c := &Cache{ttl: ttlByCategory}
	for i := range c.shards {
		c.shards[i] = &shard{items: make(map[key]entry)}
	}
	return c
}

func (c *Cache) shardFor(k key) *shard {
	h := fnv32(k.tenant + k.object + k.relation)
	return c.shards[h%shardCount]
}

func fnv32(s string) uint32 {
	const prime = 16777619
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}

func (c *Cache) Get(ctx context.Context, tenant, category, object, relation, subject string) (bool, bool) {
	k := key{tenant, category, object, relation, subject}
	sh := c.shardFor(k)

	sh.mu.RLock()
	e, ok := sh.items[k]
	sh.mu.RUnlock()
	if !ok {
		return false, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		sh.mu.Lock()
		delete(sh.items, k)
		sh.mu.Unlock()
		return false, false
	}
	return e.allowed, true
}

func (c *Cache) Set(ctx context.Context, tenant, category, object, relation, subject string, allowed bool) {
	k := key{tenant, category, object, relation, subject}
	sh := c.shardFor(k)

	e := entry{allowed: allowed}
	if ttl, ok := c.ttl[category]; ok && ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	sh.mu.Lock()
	sh.items[k] = e
	sh.mu.Unlock()
}

// Invalidate drops every cached entry for (tenant, object, relation)
// across all categories, regardless of subject, since a tuple write on
// that (object, relation) can flip the answer for any subject that was
// evaluated against it.
func (c *Cache) Invalidate(ctx context.Context, tenant, object, relation string) {
	for _, sh := range c.shards {
		sh.mu.Lock()
		for k := range sh.items {
			if k.tenant == tenant && k.object == object && k.relation == relation {
				delete(sh.items, k)
			}
		}
		sh.mu.Unlock()
	}
}

var _ engine.SubproblemCache = (*Cache)(nil)

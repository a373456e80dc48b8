// Package tiger implements the Tiger Cache: a compressed bitmap, one per
// (tenant, subject, relation, objectType), of the object symbols a subject
// is granted on that relation. Symbols (internal/interner) keep the
// bitmap dense and avoid repeated string hashing, and RoaringBitmap keeps
// the set compressed well past what a Go map[int]bool would cost at scale.
package tiger

import (
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/nexi-lab/nexus-sub005/engine"
	"github.com/nexi-lab/nexus-sub005/internal/interner"
)

type bitmapKey struct {
	tenant, subject, relation, objectType string
}

// Cache implements engine.TigerCache over a map of roaring.Bitmap, one per
// key. Sized in the hundreds to low thousands of bitmaps per tenant;
// eviction beyond that bound is the caller's responsibility via
// Invalidate, not done here.
type Cache struct {
	mu      sync.RWMutex
	bitmaps map[bitmapKey]*roaring.Bitmap
}

func New() *Cache {
	return &Cache{bitmaps: make(map[bitmapKey]*roaring.Bitmap)}
}

func (c *Cache) Bitmap(ctx context.Context, tenant, subject, relation, objectType string) ([]interner.Sym, bool) {
	k := bitmapKey{tenant, subject, relation, objectType}

	c.mu.RLock()
	bm, ok := c.bitmaps[k]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	vals := bm.ToArray()
	syms := make([]interner.Sym, len(vals))
	for i, v := range vals {
		syms[i] = interner.Sym(v)
	}
	return syms, true
}

func (c *Cache) SetBitmap(ctx context.Context, tenant, subject, relation, objectType string, symbols []interner.Sym) {
	bm := roaring.New()
	for _, s := range symbols {
		bm.Add(uint32(s))
	}

	k := bitmapKey{tenant, subject, relation, objectType}
	c.mu.Lock()
	c.bitmaps[k] = bm
	c.mu.Unlock()
}

// Add sets a single symbol in an existing bitmap, creating one if absent.
// Used to record one confirmed grant as it's discovered, instead of
// requiring the whole bitmap to be computed and set up front.
func (c *Cache) Add(ctx context.Context, tenant, subject, relation, objectType string, sym interner.Sym) {
	k := bitmapKey{tenant, subject, relation, objectType}
	c.mu.Lock()
	bm, ok := c.bitmaps[k]
	if !ok {
		bm = roaring.New()
		c.bitmaps[k] = bm
	}
	bm.Add(uint32(sym))
	c.mu.Unlock()
}

// Remove clears a single symbol from an existing bitmap, a no-op if the
// bitmap or symbol is absent.
func (c *Cache) Remove(tenant, subject, relation, objectType string, sym interner.Sym) {
	k := bitmapKey{tenant, subject, relation, objectType}
	c.mu.Lock()
	if bm, ok := c.bitmaps[k]; ok {
		bm.Remove(uint32(sym))
	}
	c.mu.Unlock()
}

func (c *Cache) Invalidate(ctx context.Context, tenant, object, relation string) {
	c.mu.Lock()
	for k := range c.bitmaps {
		if k.tenant == tenant && k.relation == relation {
			delete(c.bitmaps, k)
		}
	}
	c.mu.Unlock()
}

var _ engine.TigerCache = (*Cache)(nil)

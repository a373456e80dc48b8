package final_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexi-lab/nexus-sub005/cache/final"
	"github.com/nexi-lab/nexus-sub005/engine"
)

func TestCache_SetAndGet(t *testing.T) {
	c := final.New()
	ctx := context.Background()

	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)

	c.Set(ctx, "k1", "t1", "folder:/a", "viewer", engine.Decision{Allowed: true})
	d, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.True(t, d.Allowed)
}

func TestCache_Invalidate_DropsByTenantObjectRelation(t *testing.T) {
	c := final.New()
	ctx := context.Background()

	c.Set(ctx, "k1", "t1", "folder:/a", "viewer", engine.Decision{Allowed: true})
	c.Set(ctx, "k2", "t1", "folder:/a", "editor", engine.Decision{Allowed: false})
	c.Set(ctx, "k3", "t2", "folder:/a", "viewer", engine.Decision{Allowed: true})

	c.Invalidate(ctx, "t1", "folder:/a", "viewer")

	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "k2")
	assert.True(t, ok, "a different relation must be untouched")
	_, ok = c.Get(ctx, "k3")
	assert.True(t, ok, "a different tenant must be untouched")
}

package tiger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexi-lab/nexus-sub005/cache/tiger"
	"github.com/nexi-lab/nexus-sub005/internal/interner"
)

func TestCache_SetAndGetBitmap(t *testing.T) {
	c := tiger.New()
	ctx := context.Background()

	syms := []interner.Sym{1, 3, 5}
	c.SetBitmap(ctx, "t1", "user:alice", "viewer", "file", syms)

	got, ok := c.Bitmap(ctx, "t1", "user:alice", "viewer", "file")
	require.True(t, ok)
	assert.ElementsMatch(t, syms, got)
}

func TestCache_BitmapMissWhenUnset(t *testing.T) {
	c := tiger.New()
	_, ok := c.Bitmap(context.Background(), "t1", "user:alice", "viewer", "file")
	assert.False(t, ok)
}

func TestCache_AddAndRemove(t *testing.T) {
	c := tiger.New()
	ctx := context.Background()

	c.Add(ctx, "t1", "user:alice", "viewer", "file", interner.Sym(7))
	got, ok := c.Bitmap(ctx, "t1", "user:alice", "viewer", "file")
	require.True(t, ok)
	assert.Contains(t, got, interner.Sym(7))

	c.Remove("t1", "user:alice", "viewer", "file", interner.Sym(7))
	got, ok = c.Bitmap(ctx, "t1", "user:alice", "viewer", "file")
	require.True(t, ok)
	assert.NotContains(t, got, interner.Sym(7))
}

func TestCache_Invalidate_DropsByTenantAndRelation(t *testing.T) {
	c := tiger.New()
	ctx := context.Background()

	c.SetBitmap(ctx, "t1", "user:alice", "viewer", "file", []interner.Sym{1})
	c.SetBitmap(ctx, "t1", "user:alice", "editor", "file", []interner.Sym{2})

	c.Invalidate(ctx, "t1", "file:/a.txt", "viewer")

	_, ok := c.Bitmap(ctx, "t1", "user:alice", "viewer", "file")
	assert.False(t, ok)
	_, ok = c.Bitmap(ctx, "t1", "user:alice", "editor", "file")
	assert.True(t, ok, "a different relation must be untouched")
}

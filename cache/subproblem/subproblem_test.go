package subproblem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexi-lab/nexus-sub005/cache/subproblem"
)

func TestCache_SetGet_Roundtrip(t *testing.T) {
	c := subproblem.New(nil)
	ctx := context.Background()

	_, ok := c.Get(ctx, "t1", "grant", "folder:/a", "editor", "user:alice")
	assert.False(t, ok)

	c.Set(ctx, "t1", "grant", "folder:/a", "editor", "user:alice", true)
	allowed, ok := c.Get(ctx, "t1", "grant", "folder:/a", "editor", "user:alice")
	require.True(t, ok)
	assert.True(t, allowed)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := subproblem.New(map[string]time.Duration{"grant": 10 * time.Millisecond})
	ctx := context.Background()

	c.Set(ctx, "t1", "grant", "folder:/a", "editor", "user:alice", true)
	_, ok := c.Get(ctx, "t1", "grant", "folder:/a", "editor", "user:alice")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get(ctx, "t1", "grant", "folder:/a", "editor", "user:alice")
	assert.False(t, ok, "entry should have expired")
}

func TestCache_NoTTLForUnlistedCategory(t *testing.T) {
	c := subproblem.New(map[string]time.Duration{"grant": time.Millisecond})
	ctx := context.Background()

	c.Set(ctx, "t1", "membership", "folder:/a", "editor", "user:alice", true)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(ctx, "t1", "membership", "folder:/a", "editor", "user:alice")
	assert.True(t, ok, "a category with no configured TTL should never expire on its own")
}

func TestCache_Invalidate_DropsAllSubjectsForObjectRelation(t *testing.T) {
	c := subproblem.New(nil)
	ctx := context.Background()

	c.Set(ctx, "t1", "grant", "folder:/a", "editor", "user:alice", true)
	c.Set(ctx, "t1", "grant", "folder:/a", "editor", "user:bob", false)
	c.Set(ctx, "t1", "grant", "folder:/a", "viewer", "user:alice", true)

	c.Invalidate(ctx, "t1", "folder:/a", "editor")

	_, ok := c.Get(ctx, "t1", "grant", "folder:/a", "editor", "user:alice")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "t1", "grant", "folder:/a", "editor", "user:bob")
	assert.False(t, ok)

	_, ok = c.Get(ctx, "t1", "grant", "folder:/a", "viewer", "user:alice")
	assert.True(t, ok, "a different relation on the same object must be untouched")
}

func TestCache_Invalidate_ScopedToTenant(t *testing.T) {
	c := subproblem.New(nil)
	ctx := context.Background()

	c.Set(ctx, "t1", "grant", "folder:/a", "editor", "user:alice", true)
	c.Set(ctx, "t2", "grant", "folder:/a", "editor", "user:alice", true)

	c.Invalidate(ctx, "t1", "folder:/a", "editor")

	_, ok := c.Get(ctx, "t1", "grant", "folder:/a", "editor", "user:alice")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "t2", "grant", "folder:/a", "editor", "user:alice")
	assert.True(t, ok, "invalidation must not cross tenant boundaries")
}

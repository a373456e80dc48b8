package visibility_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexi-lab/nexus-sub005/cache/visibility"
)

func TestCache_SetAndVisible(t *testing.T) {
	c := visibility.New()
	ctx := context.Background()

	c.Set("t1", "user:alice", "folder", []string{"/a", "/b"})

	objs, ok := c.Visible(ctx, "t1", "user:alice", "folder")
	require.True(t, ok)
	assert.Equal(t, []string{"/a", "/b"}, objs)
}

func TestCache_VisibleMissWhenUnset(t *testing.T) {
	c := visibility.New()
	_, ok := c.Visible(context.Background(), "t1", "user:alice", "folder")
	assert.False(t, ok)
}

func TestCache_Invalidate_DropsAllObjectTypesForSubject(t *testing.T) {
	c := visibility.New()
	ctx := context.Background()

	c.Set("t1", "user:alice", "folder", []string{"/a"})
	c.Set("t1", "user:alice", "file", []string{"/x.txt"})
	c.Set("t1", "user:bob", "folder", []string{"/c"})

	c.Invalidate(ctx, "t1", "user", "alice")

	_, ok := c.Visible(ctx, "t1", "user:alice", "folder")
	assert.False(t, ok)
	_, ok = c.Visible(ctx, "t1", "user:alice", "file")
	assert.False(t, ok, "invalidation must span every object type for the subject")

	_, ok = c.Visible(ctx, "t1", "user:bob", "folder")
	assert.True(t, ok, "a different subject's listing must be untouched")
}

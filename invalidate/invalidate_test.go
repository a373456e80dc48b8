package invalidate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexi-lab/nexus-sub005/cache/final"
	"github.com/nexi-lab/nexus-sub005/cache/subproblem"
	"github.com/nexi-lab/nexus-sub005/engine"
	"github.com/nexi-lab/nexus-sub005/invalidate"
	"github.com/nexi-lab/nexus-sub005/store"
	"github.com/nexi-lab/nexus-sub005/store/memory"
)

// Scenario 4: revocation flushes cache. A delete on a tuple the Subproblem
// Cache had cached an allow for must be reflected after the watcher
// observes the change log, well within changelog_poll_ms + quantum.
func TestWatcher_RevocationInvalidatesSubproblemCache(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	tup := store.Tuple{Tenant: "T1", ObjectType: "folder", ObjectID: "/src", Relation: "editor", SubjectType: "user", SubjectID: "alice"}
	_, err := s.Write(ctx, tup)
	require.NoError(t, err)

	sp := subproblem.New(nil)
	sp.Set(ctx, "T1", "grant", "folder:/src", "editor", "user:alice", true)

	allowed, ok := sp.Get(ctx, "T1", "grant", "folder:/src", "editor", "user:alice")
	require.True(t, ok)
	require.True(t, allowed)

	_, err = s.Delete(ctx, tup.Key())
	require.NoError(t, err)

	w := invalidate.NewWatcher(s, "T1", invalidate.Caches{Subproblem: sp}, invalidate.WithPollInterval(5*time.Millisecond))
	runCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	go w.Run(runCtx)

	require.Eventually(t, func() bool {
		_, stillCached := sp.Get(ctx, "T1", "grant", "folder:/src", "editor", "user:alice")
		return !stillCached
	}, 100*time.Millisecond, 5*time.Millisecond, "revocation should evict the stale subproblem cache entry")
}

func TestWatcher_InvalidatesFinalCacheByTenantObjectRelation(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	tup := store.Tuple{Tenant: "T1", ObjectType: "folder", ObjectID: "/src", Relation: "editor", SubjectType: "user", SubjectID: "alice"}
	_, err := s.Write(ctx, tup)
	require.NoError(t, err)

	fc := final.New()
	fc.Set(ctx, "key1", "T1", "folder:/src", "editor", engine.Decision{Allowed: true})

	_, err = s.Delete(ctx, tup.Key())
	require.NoError(t, err)

	w := invalidate.NewWatcher(s, "T1", invalidate.Caches{Final: fc}, invalidate.WithPollInterval(5*time.Millisecond))
	runCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	go w.Run(runCtx)

	require.Eventually(t, func() bool {
		_, ok := fc.Get(ctx, "key1")
		return !ok
	}, 100*time.Millisecond, 5*time.Millisecond, "a delete must invalidate final-cache entries tagged with that (tenant, object, relation)")
}

func TestWatcher_StopsOnTenantGone(t *testing.T) {
	s := memory.New()
	s.Tombstone("T1")

	w := invalidate.NewWatcher(s, "T1", invalidate.Caches{}, invalidate.WithPollInterval(5*time.Millisecond))

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("watcher should stop once its tenant is gone")
	}
}

func TestWatcher_WithStartSeq_SkipsEarlierEntries(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	seq1, err := s.Write(ctx, store.Tuple{Tenant: "T1", ObjectType: "folder", ObjectID: "/a", Relation: "viewer", SubjectType: "user", SubjectID: "alice"})
	require.NoError(t, err)

	sp := subproblem.New(nil)
	sp.Set(ctx, "T1", "grant", "folder:/a", "viewer", "user:alice", true)

	w := invalidate.NewWatcher(s, "T1", invalidate.Caches{Subproblem: sp}, invalidate.WithStartSeq(seq1), invalidate.WithPollInterval(5*time.Millisecond))
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	w.Run(runCtx)

	// The entry at seq1 was skipped (WithStartSeq starts after it), so the
	// cached entry should remain untouched.
	_, ok := sp.Get(ctx, "T1", "grant", "folder:/a", "viewer", "user:alice")
	assert.True(t, ok)
}

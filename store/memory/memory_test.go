package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexi-lab/nexus-sub005/store"
	"github.com/nexi-lab/nexus-sub005/store/memory"
)

func tuple(tenant, objType, objID, relation, subType, subID string) store.Tuple {
	return store.Tuple{
		Tenant:      tenant,
		ObjectType:  objType,
		ObjectID:    objID,
		Relation:    relation,
		SubjectType: subType,
		SubjectID:   subID,
	}
}

func TestWrite_AssignsIncreasingSeq(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	seq1, err := s.Write(ctx, tuple("t1", "repository", "r1", "owner", "user", "alice"))
	require.NoError(t, err)
	seq2, err := s.Write(ctx, tuple("t1", "repository", "r1", "viewer", "user", "bob"))
	require.NoError(t, err)

	assert.Less(t, seq1, seq2)
}

func TestWrite_IdempotentOnIdenticalTuple(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	tup := tuple("t1", "repository", "r1", "owner", "user", "alice")
	seq1, err := s.Write(ctx, tup)
	require.NoError(t, err)
	seq2, err := s.Write(ctx, tup)
	require.NoError(t, err)

	assert.Equal(t, seq1, seq2, "writing an identical tuple again must return the original seq")

	entries, err := s.ChangelogScan(ctx, "t1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "idempotent write must not append a second change-log entry")
}

func TestDelete_RemovesTupleAndReturnsNotFoundOnRepeat(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	tup := tuple("t1", "repository", "r1", "owner", "user", "alice")
	_, err := s.Write(ctx, tup)
	require.NoError(t, err)

	_, err = s.Delete(ctx, tup.Key())
	require.NoError(t, err)

	tuples, err := s.LookupByObject(ctx, "t1", "repository", "r1", "")
	require.NoError(t, err)
	assert.Empty(t, tuples)

	_, err = s.Delete(ctx, tup.Key())
	assert.True(t, store.IsNotFound(err))
}

func TestLookupByObject_FiltersByRelation(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	_, err := s.Write(ctx, tuple("t1", "repository", "r1", "owner", "user", "alice"))
	require.NoError(t, err)
	_, err = s.Write(ctx, tuple("t1", "repository", "r1", "viewer", "user", "bob"))
	require.NoError(t, err)

	owners, err := s.LookupByObject(ctx, "t1", "repository", "r1", "owner")
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, "alice", owners[0].SubjectID)

	all, err := s.LookupByObject(ctx, "t1", "repository", "r1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLookupBySubject_FindsReverseEdges(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	_, err := s.Write(ctx, tuple("t1", "repository", "r1", "owner", "user", "alice"))
	require.NoError(t, err)
	_, err = s.Write(ctx, tuple("t1", "repository", "r2", "owner", "user", "alice"))
	require.NoError(t, err)

	owned, err := s.LookupBySubject(ctx, "t1", "user", "alice", "owner")
	require.NoError(t, err)
	assert.Len(t, owned, 2)
}

func TestLookupTupleset_FollowsParentEdges(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	_, err := s.Write(ctx, tuple("t1", "repository", "r1", "parent", "organization", "acme"))
	require.NoError(t, err)

	refs, err := s.LookupTupleset(ctx, "t1", "repository", "r1", "parent")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, store.ObjectRef{Type: "organization", ID: "acme"}, refs[0])
}

func TestWrite_RejectsCyclicParentEdge(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	_, err := s.Write(ctx, tuple("t1", "folder", "a", "parent", "folder", "b"))
	require.NoError(t, err)
	_, err = s.Write(ctx, tuple("t1", "folder", "b", "parent", "folder", "c"))
	require.NoError(t, err)

	// c -> a would close the cycle a -> b -> c -> a.
	_, err = s.Write(ctx, tuple("t1", "folder", "c", "parent", "folder", "a"))
	assert.True(t, store.IsCycle(err))
}

func TestWrite_CrossTypeParentEdgeNeverCycles(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	_, err := s.Write(ctx, tuple("t1", "repository", "r1", "parent", "organization", "acme"))
	require.NoError(t, err)
	_, err = s.Write(ctx, tuple("t1", "organization", "acme", "parent", "repository", "r1"))
	assert.NoError(t, err)
}

func TestTombstone_RejectsFurtherOperations(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	s.Tombstone("t1")

	_, err := s.Write(ctx, tuple("t1", "repository", "r1", "owner", "user", "alice"))
	assert.True(t, store.IsTenantGone(err))

	_, err = s.LookupByObject(ctx, "t1", "repository", "r1", "")
	assert.True(t, store.IsTenantGone(err))
}

func TestChangelogScan_ReturnsEntriesAfterSinceSeq(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	seq1, err := s.Write(ctx, tuple("t1", "repository", "r1", "owner", "user", "alice"))
	require.NoError(t, err)
	_, err = s.Write(ctx, tuple("t1", "repository", "r1", "viewer", "user", "bob"))
	require.NoError(t, err)

	entries, err := s.ChangelogScan(ctx, "t1", seq1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].After.SubjectID)
}

func TestChangelogScan_RespectsMax(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Write(ctx, tuple("t1", "repository", "r1", "viewer", "user", string(rune('a'+i))))
		require.NoError(t, err)
	}

	entries, err := s.ChangelogScan(ctx, "t1", 0, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestExpired_ReportsPastExpiry(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	tup := tuple("t1", "repository", "r1", "viewer", "user", "alice")
	tup.ExpiresAt = &past

	assert.True(t, tup.Expired(time.Now()))
}

func TestCurrentSeq_TracksLatestWrite(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	seq, err := s.CurrentSeq(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	want, err := s.Write(ctx, tuple("t1", "repository", "r1", "owner", "user", "alice"))
	require.NoError(t, err)

	got, err := s.CurrentSeq(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

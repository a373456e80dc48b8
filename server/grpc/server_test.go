package grpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/nexi-lab/nexus-sub005/api/nexusv1"
	"github.com/nexi-lab/nexus-sub005/engine"
	"github.com/nexi-lab/nexus-sub005/schema"
	"github.com/nexi-lab/nexus-sub005/store"
	"github.com/nexi-lab/nexus-sub005/store/memory"
)

type staticSchema struct{ model schema.Model }

func (s staticSchema) Model(ctx context.Context, tenant string) (schema.Model, error) {
	return s.model, nil
}

func testModel() schema.Model {
	return schema.Model{
		Types: []schema.TypeDefinition{
			{Name: "file", Relations: []schema.RelationDefinition{
				{Name: "viewer", Rule: schema.Rule{Kind: schema.This}},
				{Name: "read", Rule: schema.Rule{Kind: schema.Computed, Relation: "viewer"}},
			}},
		},
	}
}

func newTestServer() *Server {
	s := memory.New()
	checker := engine.NewChecker(s, staticSchema{model: testModel()})
	return NewServer(checker, s)
}

func TestServer_Check_AllowAndDeny(t *testing.T) {
	srv := newTestServer()
	ctx := context.Background()

	_, err := srv.WriteTuple(ctx, &nexusv1.WriteTupleRequest{
		Tenant:   "t1",
		Object:   nexusv1.ObjectRef{Type: "file", ID: "/a.txt"},
		Relation: "viewer",
		Subject:  nexusv1.SubjectRef{Type: "user", ID: "alice"},
	})
	require.NoError(t, err)

	resp, err := srv.Check(ctx, &nexusv1.CheckRequest{
		Tenant:    "t1",
		Object:    nexusv1.ObjectRef{Type: "file", ID: "/a.txt"},
		Relation:  "read",
		Principal: nexusv1.SubjectRef{Type: "user", ID: "alice"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Decision)

	resp, err = srv.Check(ctx, &nexusv1.CheckRequest{
		Tenant:    "t1",
		Object:    nexusv1.ObjectRef{Type: "file", ID: "/a.txt"},
		Relation:  "read",
		Principal: nexusv1.SubjectRef{Type: "user", ID: "bob"},
	})
	require.NoError(t, err)
	assert.False(t, resp.Decision)
}

func TestServer_Check_UnknownRelationDenies(t *testing.T) {
	srv := newTestServer()
	resp, err := srv.Check(context.Background(), &nexusv1.CheckRequest{
		Tenant:    "t1",
		Object:    nexusv1.ObjectRef{Type: "file", ID: "/a.txt"},
		Relation:  "nope",
		Principal: nexusv1.SubjectRef{Type: "user", ID: "alice"},
	})
	require.NoError(t, err)
	assert.False(t, resp.Decision)
}

func TestServer_Expand_UnknownRelationMapsToNotFound(t *testing.T) {
	srv := newTestServer()
	_, err := srv.Expand(context.Background(), &nexusv1.ExpandRequest{
		Tenant: "t1", Object: nexusv1.ObjectRef{Type: "file", ID: "/a.txt"}, Relation: "nope",
	})
	require.Error(t, err)
	st, ok := grpcstatus.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
}

func TestServer_WriteThenDeleteTuple(t *testing.T) {
	srv := newTestServer()
	ctx := context.Background()

	wresp, err := srv.WriteTuple(ctx, &nexusv1.WriteTupleRequest{
		Tenant:   "t1",
		Object:   nexusv1.ObjectRef{Type: "file", ID: "/a.txt"},
		Relation: "viewer",
		Subject:  nexusv1.SubjectRef{Type: "user", ID: "alice"},
	})
	require.NoError(t, err)
	assert.Greater(t, wresp.Seq, int64(0))

	dresp, err := srv.DeleteTuple(ctx, &nexusv1.DeleteTupleRequest{
		Tenant:   "t1",
		Object:   nexusv1.ObjectRef{Type: "file", ID: "/a.txt"},
		Relation: "viewer",
		Subject:  nexusv1.SubjectRef{Type: "user", ID: "alice"},
	})
	require.NoError(t, err)
	assert.Greater(t, dresp.Seq, wresp.Seq)
}

func TestServer_BulkCheck_MatchesIndividualChecks(t *testing.T) {
	srv := newTestServer()
	ctx := context.Background()
	_, err := srv.WriteTuple(ctx, &nexusv1.WriteTupleRequest{
		Tenant: "t1", Object: nexusv1.ObjectRef{Type: "file", ID: "/a.txt"},
		Relation: "viewer", Subject: nexusv1.SubjectRef{Type: "user", ID: "alice"},
	})
	require.NoError(t, err)

	resp, err := srv.BulkCheck(ctx, &nexusv1.BulkCheckRequest{
		Tenant: "t1",
		Items: []nexusv1.BulkCheckItem{
			{Object: nexusv1.ObjectRef{Type: "file", ID: "/a.txt"}, Relation: "read", Principal: nexusv1.SubjectRef{Type: "user", ID: "alice"}},
			{Object: nexusv1.ObjectRef{Type: "file", ID: "/a.txt"}, Relation: "read", Principal: nexusv1.SubjectRef{Type: "user", ID: "bob"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.True(t, resp.Results[0].Decision)
	assert.False(t, resp.Results[1].Decision)
}

func TestServer_Expand_ReturnsDirectGrant(t *testing.T) {
	srv := newTestServer()
	ctx := context.Background()
	_, err := srv.WriteTuple(ctx, &nexusv1.WriteTupleRequest{
		Tenant: "t1", Object: nexusv1.ObjectRef{Type: "file", ID: "/a.txt"},
		Relation: "viewer", Subject: nexusv1.SubjectRef{Type: "user", ID: "alice"},
	})
	require.NoError(t, err)

	resp, err := srv.Expand(ctx, &nexusv1.ExpandRequest{
		Tenant: "t1", Object: nexusv1.ObjectRef{Type: "file", ID: "/a.txt"}, Relation: "viewer",
	})
	require.NoError(t, err)
	require.Len(t, resp.Subjects, 1)
	assert.Equal(t, "alice", resp.Subjects[0].ID)
}

func TestStatusFromErr_MapsCycleToFailedPrecondition(t *testing.T) {
	err := statusFromErr(store.ErrCycle)
	st, ok := grpcstatus.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.FailedPrecondition, st.Code())
}

func TestStatusFromErr_NilIsNil(t *testing.T) {
	assert.NoError(t, statusFromErr(nil))
}

func TestToConsistency_MapsModes(t *testing.T) {
	c := toConsistency(nexusv1.Consistency{Mode: nexusv1.ConsistencyStrong, Token: 5})
	assert.Equal(t, engine.Strong, c.Mode)
	assert.Equal(t, int64(5), c.Token)

	c = toConsistency(nexusv1.Consistency{Mode: nexusv1.ConsistencyEventual})
	assert.Equal(t, engine.Eventual, c.Mode)
}

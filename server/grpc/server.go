// Package grpc implements the authorization API as a
// gRPC service over nexusv1's JSON-tagged messages, registered with a
// custom encoding.Codec (codec.go) instead of the usual protobuf codec.
// Server is the thin adapter between nexusv1 wire messages and the
// engine.Checker/store.Store calls that do the actual work; it holds no
// authorization logic of its own.
package grpc

import (
	"context"
	"errors"
	"time"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/nexi-lab/nexus-sub005/api/nexusv1"
	"github.com/nexi-lab/nexus-sub005/engine"
	"github.com/nexi-lab/nexus-sub005/store"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Server implements Handler over a Checker and the Store it shares,
// wired together by cmd/nexus's serve command.
type Server struct {
	checker *engine.Checker
	store   store.Store
}

// NewServer returns a Server ready to register on a *grpc.Server via
// NewGRPCServer.
func NewServer(checker *engine.Checker, s store.Store) *Server {
	return &Server{checker: checker, store: s}
}

// NewGRPCServer builds a *grpc.Server with Server registered under
// ServiceName, using the JSON codec rather than protobuf.
func NewGRPCServer(checker *engine.Checker, s store.Store, opts ...grpclib.ServerOption) *grpclib.Server {
	srv := grpclib.NewServer(opts...)
	srv.RegisterService(&serviceDesc, NewServer(checker, s))
	return srv
}

func toSubjectRef(s nexusv1.SubjectRef) store.SubjectRef {
	return store.SubjectRef{Type: s.Type, ID: s.ID, Relation: s.Relation}
}

func toPrincipal(s nexusv1.SubjectRef) engine.Principal {
	return engine.Principal{Type: s.Type, ID: s.ID, Tenant: s.Tenant}
}

func toObjectRef(o nexusv1.ObjectRef) store.ObjectRef {
	return store.ObjectRef{Type: o.Type, ID: o.ID}
}

func toConsistency(c nexusv1.Consistency) engine.Consistency {
	mode := engine.Eventual
	switch c.Mode {
	case nexusv1.ConsistencyBounded:
		mode = engine.Bounded
	case nexusv1.ConsistencyStrong:
		mode = engine.Strong
	}
	return engine.Consistency{Mode: mode, Token: c.Token}
}

func toTraceSteps(t *engine.Trace) []nexusv1.TraceStep {
	if t == nil {
		return nil
	}
	return convertSteps(t.Steps)
}

func convertSteps(steps []engine.TraceStep) []nexusv1.TraceStep {
	if len(steps) == 0 {
		return nil
	}
	out := make([]nexusv1.TraceStep, len(steps))
	for i, s := range steps {
		out[i] = nexusv1.TraceStep{
			Object:    s.Object,
			Relation:  s.Relation,
			Rule:      s.Rule,
			Satisfied: s.Satisfied,
			Via:       s.Via,
			Children:  convertSteps(s.Children),
		}
	}
	return out
}

// statusFromErr maps engine/store sentinel errors to gRPC status codes,
// since nexusv1 response messages never carry error fields of their own.
// Check itself never returns the unknown-type/relation sentinels (it
// downgrades them to a plain denial); this mapping still applies to Expand,
// which surfaces them as hard errors.
func statusFromErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case engine.IsUnknownTypeErr(err), engine.IsUnknownRelationErr(err):
		return status.Error(codes.NotFound, err.Error())
	case engine.IsCycleDetectedErr(err), store.IsCycle(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	case engine.IsTenantGoneErr(err), store.IsTenantGone(err):
		return status.Error(codes.NotFound, err.Error())
	case engine.IsConsistencyUnmetErr(err):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case store.IsConflict(err):
		return status.Error(codes.Aborted, err.Error())
	case store.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func withDeadline(ctx context.Context, ms int64) (context.Context, context.CancelFunc) {
	if ms <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
}

// Check implements Handler.
func (s *Server) Check(ctx context.Context, req *nexusv1.CheckRequest) (*nexusv1.CheckResponse, error) {
	ctx, cancel := withDeadline(ctx, req.DeadlineMs)
	defer cancel()

	d, err := s.checker.Check(ctx, req.Tenant, toObjectRef(req.Object), req.Relation, toPrincipal(req.Principal), toConsistency(req.Consistency))
	if err != nil {
		return nil, statusFromErr(err)
	}
	return &nexusv1.CheckResponse{Decision: d.Allowed, Token: d.Token, Trace: toTraceSteps(d.Trace)}, nil
}

// BulkCheck implements Handler.
func (s *Server) BulkCheck(ctx context.Context, req *nexusv1.BulkCheckRequest) (*nexusv1.BulkCheckResponse, error) {
	ctx, cancel := withDeadline(ctx, req.DeadlineMs)
	defer cancel()

	reqs := make([]engine.BulkCheckRequest, len(req.Items))
	for i, item := range req.Items {
		reqs[i] = engine.BulkCheckRequest{
			Object:    toObjectRef(item.Object),
			Relation:  item.Relation,
			Principal: toPrincipal(item.Principal),
		}
	}

	results := s.checker.BulkCheck(ctx, req.Tenant, reqs, toConsistency(req.Consistency))

	out := make([]nexusv1.BulkCheckResultItem, len(results))
	for i, r := range results {
		item := nexusv1.BulkCheckResultItem{Decision: r.Decision.Allowed}
		if r.Err != nil {
			item.Error = r.Err.Error()
		}
		out[i] = item
	}
	return &nexusv1.BulkCheckResponse{Results: out}, nil
}

// Filter implements Handler.
func (s *Server) Filter(ctx context.Context, req *nexusv1.FilterRequest) (*nexusv1.FilterResponse, error) {
	objects, err := s.checker.Filter(ctx, req.Tenant, req.Type, req.Relation, toPrincipal(req.Principal))
	if err != nil {
		return nil, statusFromErr(err)
	}

	wanted := make(map[string]bool, len(req.Objects))
	for _, id := range req.Objects {
		wanted[id] = true
	}
	if len(wanted) == 0 {
		return &nexusv1.FilterResponse{Objects: objects}, nil
	}

	allowed := make(map[string]bool, len(objects))
	for _, id := range objects {
		allowed[id] = true
	}

	out := make([]string, 0, len(req.Objects))
	for _, id := range req.Objects {
		if allowed[id] {
			out = append(out, id)
		}
	}
	return &nexusv1.FilterResponse{Objects: out}, nil
}

// Expand implements Handler.
func (s *Server) Expand(ctx context.Context, req *nexusv1.ExpandRequest) (*nexusv1.ExpandResponse, error) {
	principals, err := s.checker.Expand(ctx, req.Tenant, toObjectRef(req.Object), req.Relation)
	if err != nil {
		return nil, statusFromErr(err)
	}

	out := make([]nexusv1.SubjectRef, len(principals))
	for i, p := range principals {
		out[i] = nexusv1.SubjectRef{Type: p.Type, ID: p.ID}
	}
	return &nexusv1.ExpandResponse{Subjects: out}, nil
}

// qualifiedSubjectID returns the SubjectID a tuple in objectTenant should
// store for s: the bare ID, unless s names a subject from a different
// tenant, in which case the foreign tenant is folded into the ID as
// "id@tenant" per store.SharedRelationPrefix's convention. A userset
// subject (s.Relation set) is never qualified this way, since a group
// reference is always local to the tenant holding the group.
func qualifiedSubjectID(objectTenant string, s nexusv1.SubjectRef) string {
	if s.Relation == "" && s.Tenant != "" && s.Tenant != objectTenant {
		return s.ID + "@" + s.Tenant
	}
	return s.ID
}

// WriteTuple implements Handler.
func (s *Server) WriteTuple(ctx context.Context, req *nexusv1.WriteTupleRequest) (*nexusv1.WriteTupleResponse, error) {
	t := store.Tuple{
		Tenant:          req.Tenant,
		ObjectType:      req.Object.Type,
		ObjectID:        req.Object.ID,
		Relation:        req.Relation,
		SubjectType:     req.Subject.Type,
		SubjectID:       qualifiedSubjectID(req.Tenant, req.Subject),
		SubjectRelation: req.Subject.Relation,
		ExpiresAt:       req.ExpiresAt,
	}

	seq, err := s.checker.WriteTuple(ctx, t)
	if err != nil {
		return nil, statusFromErr(err)
	}
	return &nexusv1.WriteTupleResponse{Seq: seq}, nil
}

// DeleteTuple implements Handler.
func (s *Server) DeleteTuple(ctx context.Context, req *nexusv1.DeleteTupleRequest) (*nexusv1.DeleteTupleResponse, error) {
	pk := store.Key{
		Tenant:          req.Tenant,
		ObjectType:      req.Object.Type,
		ObjectID:        req.Object.ID,
		Relation:        req.Relation,
		SubjectType:     req.Subject.Type,
		SubjectID:       qualifiedSubjectID(req.Tenant, req.Subject),
		SubjectRelation: req.Subject.Relation,
	}

	seq, err := s.checker.DeleteTuple(ctx, pk)
	if err != nil {
		return nil, statusFromErr(err)
	}
	return &nexusv1.DeleteTupleResponse{Seq: seq}, nil
}

// Explain implements Handler.
func (s *Server) Explain(ctx context.Context, req *nexusv1.ExplainRequest) (*nexusv1.ExplainResponse, error) {
	d, err := s.checker.Explain(ctx, req.Tenant, toObjectRef(req.Object), req.Relation, toPrincipal(req.Principal))
	if err != nil {
		return nil, statusFromErr(err)
	}
	return &nexusv1.ExplainResponse{Decision: d.Allowed, Trace: toTraceSteps(d.Trace)}, nil
}

// Watch implements Handler, streaming change-log entries to downstream
// invalidators as watch(tenant, since_seq) -> stream<change>. Package
// invalidate is nexus's own in-process consumer of the same ChangelogScan
// call; Watch exists for out-of-process subscribers.
func (s *Server) Watch(req *nexusv1.WatchRequest, stream WatchServer) error {
	ctx := stream.Context()
	sinceSeq := req.SinceSeq

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		entries, err := s.store.ChangelogScan(ctx, req.Tenant, sinceSeq, 500)
		if err != nil {
			return statusFromErr(err)
		}
		for _, e := range entries {
			if err := stream.Send(toWatchResponse(e)); err != nil {
				return err
			}
			sinceSeq = e.Seq
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func toTupleMsg(t *store.Tuple) *nexusv1.TupleMsg {
	if t == nil {
		return nil
	}
	return &nexusv1.TupleMsg{
		Tenant:          t.Tenant,
		ObjectType:      t.ObjectType,
		ObjectID:        t.ObjectID,
		Relation:        t.Relation,
		SubjectType:     t.SubjectType,
		SubjectID:       t.SubjectID,
		SubjectRelation: t.SubjectRelation,
		ExpiresAt:       t.ExpiresAt,
		CreatedAt:       t.CreatedAt,
	}
}

func toWatchResponse(e store.ChangeEntry) *nexusv1.WatchResponse {
	kind := nexusv1.ChangeWrite
	if e.Kind == store.ChangeDelete {
		kind = nexusv1.ChangeDelete
	}
	return &nexusv1.WatchResponse{
		Seq:    e.Seq,
		Kind:   kind,
		Before: toTupleMsg(e.Before),
		After:  toTupleMsg(e.After),
		Ts:     e.Ts,
	}
}

// Package nexusv1 defines the wire messages for the Authorization API:
// Check, BulkCheck, Filter, Expand, WriteTuple, DeleteTuple, Watch, and
// Explain. Messages are plain Go structs with JSON tags rather than
// protoc-generated types, carried over JSON instead of protobuf wire
// format by server/grpc's codec, while still traveling over a
// grpc.Server/grpc.ClientConn transport so the service keeps gRPC's
// streaming (Watch) and deadline propagation without requiring a .proto
// build step.
package nexusv1

import "time"

// ObjectRef names a resource within a tenant: "document:readme.md".
type ObjectRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// SubjectRef names a concrete subject or, with Relation set, a userset
// ("group:eng#member"). Tenant is the subject's home tenant; leave it
// empty for the common case of a subject in the same tenant as the object
// being checked, and set it to name a subject from a different tenant
// (only meaningful together with a shared_* relation).
type SubjectRef struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Relation string `json:"relation,omitempty"`
	Tenant   string `json:"tenant,omitempty"`
}

// ConsistencyMode mirrors engine.ConsistencyMode on the wire.
type ConsistencyMode string

const (
	ConsistencyEventual ConsistencyMode = "eventual"
	ConsistencyBounded  ConsistencyMode = "bounded"
	ConsistencyStrong   ConsistencyMode = "strong"
)

// Consistency carries the requested consistency mode and, for bounded
// consistency, the change-log token the answer must reflect.
type Consistency struct {
	Mode  ConsistencyMode `json:"mode"`
	Token int64           `json:"token,omitempty"`
}

// CheckRequest is the request message for Check: does Principal satisfy
// Relation on Object, as of Consistency, within DeadlineMs.
type CheckRequest struct {
	Tenant      string      `json:"tenant"`
	Principal   SubjectRef  `json:"principal"`
	Relation    string      `json:"relation"`
	Object      ObjectRef   `json:"object"`
	Consistency Consistency `json:"consistency"`
	DeadlineMs  int64       `json:"deadline_ms,omitempty"`
}

// TraceStep is one node of a Check or Explain trace.
type TraceStep struct {
	Object    string      `json:"object"`
	Relation  string      `json:"relation"`
	Rule      string      `json:"rule"`
	Satisfied bool        `json:"satisfied"`
	Via       string      `json:"via"`
	Children  []TraceStep `json:"children,omitempty"`
}

// CheckResponse is the response message for Check.
type CheckResponse struct {
	Decision bool        `json:"decision"`
	Token    int64       `json:"token"`
	Trace    []TraceStep `json:"trace,omitempty"`
}

// BulkCheckItem is one request within a BulkCheck call.
type BulkCheckItem struct {
	Principal SubjectRef `json:"principal"`
	Relation  string     `json:"relation"`
	Object    ObjectRef  `json:"object"`
}

// BulkCheckRequest is the request message for BulkCheck: bulk_check(
// principal, items[], consistency, deadline) -> map.
type BulkCheckRequest struct {
	Tenant      string          `json:"tenant"`
	Items       []BulkCheckItem `json:"items"`
	Consistency Consistency     `json:"consistency"`
	DeadlineMs  int64           `json:"deadline_ms,omitempty"`
}

// BulkCheckResultItem pairs one BulkCheckItem with its outcome.
type BulkCheckResultItem struct {
	Decision bool   `json:"decision"`
	Error    string `json:"error,omitempty"`
}

// BulkCheckResponse is the response message for BulkCheck, keyed by the
// index of the corresponding BulkCheckRequest.Items entry.
type BulkCheckResponse struct {
	Results []BulkCheckResultItem `json:"results"`
}

// FilterRequest is the request message for Filter: filter(principal,
// permission, objects[]) -> objects[], returning input order preserved,
// membership only.
type FilterRequest struct {
	Tenant    string     `json:"tenant"`
	Principal SubjectRef `json:"principal"`
	Relation  string     `json:"relation"`
	Objects   []string   `json:"objects"`
	Type      string     `json:"type"`
}

// FilterResponse is the response message for Filter.
type FilterResponse struct {
	Objects []string `json:"objects"`
}

// ExpandRequest is the request message for Expand: expand(permission,
// object_ref) -> tree of subjects, for UIs.
type ExpandRequest struct {
	Tenant   string    `json:"tenant"`
	Object   ObjectRef `json:"object"`
	Relation string    `json:"relation"`
}

// ExpandResponse returns the userset tree with concrete leaves.
type ExpandResponse struct {
	Subjects []SubjectRef `json:"subjects"`
}

// WriteTupleRequest is the request message for write_tuple(tuple,
// expected_seq?) -> {seq}.
type WriteTupleRequest struct {
	Tenant       string     `json:"tenant"`
	Object       ObjectRef  `json:"object"`
	Relation     string     `json:"relation"`
	Subject      SubjectRef `json:"subject"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	ExpectedSeq  *int64     `json:"expected_seq,omitempty"`
}

// WriteTupleResponse carries the change-log seq the write was assigned.
type WriteTupleResponse struct {
	Seq int64 `json:"seq"`
}

// DeleteTupleRequest is the request message for delete_tuple(pk) -> {seq}.
type DeleteTupleRequest struct {
	Tenant   string     `json:"tenant"`
	Object   ObjectRef  `json:"object"`
	Relation string     `json:"relation"`
	Subject  SubjectRef `json:"subject"`
}

// DeleteTupleResponse carries the change-log seq the delete was assigned.
type DeleteTupleResponse struct {
	Seq int64 `json:"seq"`
}

// WatchRequest starts a change-log stream: watch(tenant, since_seq) ->
// stream<change>, consumed by downstream invalidators (package
// invalidate is nexus's own such consumer; WatchRequest exists so
// external processes can subscribe the same way).
type WatchRequest struct {
	Tenant   string `json:"tenant"`
	SinceSeq int64  `json:"since_seq"`
}

// ChangeKind mirrors store.ChangeKind on the wire.
type ChangeKind string

const (
	ChangeWrite  ChangeKind = "write"
	ChangeDelete ChangeKind = "delete"
)

// TupleMsg is the wire form of a relation tuple.
type TupleMsg struct {
	Tenant          string     `json:"tenant"`
	ObjectType      string     `json:"object_type"`
	ObjectID        string     `json:"object_id"`
	Relation        string     `json:"relation"`
	SubjectType     string     `json:"subject_type"`
	SubjectID       string     `json:"subject_id"`
	SubjectRelation string     `json:"subject_relation,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// WatchResponse is one entry of the change-log stream.
type WatchResponse struct {
	Seq    int64      `json:"seq"`
	Kind   ChangeKind `json:"kind"`
	Before *TupleMsg  `json:"before,omitempty"`
	After  *TupleMsg  `json:"after,omitempty"`
	Ts     time.Time  `json:"ts"`
}

// ExplainRequest is the request message for explain(principal, permission,
// object_ref) -> trace: witness tuples for a decision.
type ExplainRequest struct {
	Tenant    string     `json:"tenant"`
	Principal SubjectRef `json:"principal"`
	Relation  string     `json:"relation"`
	Object    ObjectRef  `json:"object"`
}

// ExplainResponse carries the full rule-tree trace behind a decision.
type ExplainResponse struct {
	Decision bool        `json:"decision"`
	Trace    []TraceStep `json:"trace"`
}

// ErrorKind enumerates the error categories a failed call can fall into,
// surfaced to clients as gRPC status details rather than as part of a
// response message body.
type ErrorKind string

const (
	ErrorInvalidArgument   ErrorKind = "InvalidArgument"
	ErrorUnknownPermission ErrorKind = "UnknownPermission"
	ErrorUnknownObjectType ErrorKind = "UnknownObjectType"
	ErrorConflict          ErrorKind = "Conflict"
	ErrorUnavailable       ErrorKind = "Unavailable"
	ErrorDeadlineExceeded  ErrorKind = "DeadlineExceeded"
	ErrorCycleDetected     ErrorKind = "CycleDetected"
	ErrorInternal          ErrorKind = "Internal"
)

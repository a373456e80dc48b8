package engine

import (
	"time"

	"github.com/nexi-lab/nexus-sub005/store"
)

// Principal is the subject of a Check: a concrete subject, never a
// userset, since a caller always asks "can this one subject do X". Tenant
// is the subject's home tenant; it is usually empty (meaning "same tenant
// as the object being checked"), and only needs setting when the subject
// belongs to a different tenant than the object it's being checked against.
type Principal struct {
	Type   string
	ID     string
	Tenant string
}

func (p Principal) String() string {
	if p.Tenant != "" {
		return p.Type + ":" + p.ID + "@" + p.Tenant
	}
	return p.Type + ":" + p.ID
}

func (p Principal) ref() store.SubjectRef { return store.SubjectRef{Type: p.Type, ID: p.ID} }

// CrossTenant reports whether p's home tenant differs from objectTenant -
// the case a shared_* relation exists to cover.
func (p Principal) CrossTenant(objectTenant string) bool {
	return p.Tenant != "" && p.Tenant != objectTenant
}

// identity returns the subject identity string to match against a tuple's
// SubjectID when the tuple's object lives in objectTenant: the bare ID for
// a same-tenant principal, or ID+"@"+Tenant for a cross-tenant one - the
// same qualified form a shared_* grant tuple is written with.
func (p Principal) identity(objectTenant string) string {
	if p.CrossTenant(objectTenant) {
		return p.ID + "@" + p.Tenant
	}
	return p.ID
}

// ConsistencyMode selects how fresh the evaluation must be relative to the
// store's change log.
type ConsistencyMode int

const (
	// Eventual allows serving from any cache layer regardless of how
	// stale it is. The default; cheapest and fastest.
	Eventual ConsistencyMode = iota
	// Bounded requires the evaluation to reflect at least the change log
	// up to Consistency.Token before answering.
	Bounded
	// Strong bypasses all caches and re-derives the answer from the
	// store directly.
	Strong
)

// Consistency carries the requested consistency mode and, for Bounded, the
// change-log token the answer must reflect.
type Consistency struct {
	Mode  ConsistencyMode
	Token int64
}

// Decision is the outcome of a Check, carrying enough to both answer the
// yes/no question and explain it.
type Decision struct {
	Allowed bool
	// Token is the change-log seq this decision is certified consistent
	// with: the highest seq consulted during evaluation (directly, or via
	// a cache entry stamped with one).
	Token int64
	Trace *Trace
}

// Trace records, on request, the rule-tree path that produced a Decision.
// Populated only when Explain is used; Check leaves it nil to avoid
// allocating on the hot path.
type Trace struct {
	Object   string
	Relation string
	Steps    []TraceStep
}

// TraceStep is one node visited while evaluating a Decision.
type TraceStep struct {
	Object    string
	Relation  string
	Rule      string // schema.RuleKind.String()
	Satisfied bool
	Via       string // "cache:subproblem", "cache:leopard", "store", etc.
	Children  []TraceStep
}

// BulkCheckRequest is one item of a BulkCheck call.
type BulkCheckRequest struct {
	Object    store.ObjectRef
	Relation  string
	Principal Principal
}

// BulkCheckResult pairs a request with its outcome, preserving input order
// so callers can zip requests and results by index.
type BulkCheckResult struct {
	Request BulkCheckRequest
	Decision
	Err error
}

// now is overridable in tests; production code always uses time.Now.
var now = time.Now

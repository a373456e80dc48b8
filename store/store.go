// Package store defines the durable tuple store contract shared by the
// in-memory (store/memory) and PostgreSQL (store/postgres) backends. It
// owns the canonical relation tuples and the append-only change log that
// the rest of the core's caches are derived from and invalidated against.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ObjectRef identifies a resource within a tenant.
type ObjectRef struct {
	Type string
	ID   string
}

func (o ObjectRef) String() string { return o.Type + ":" + o.ID }

// SubjectRef identifies either a concrete subject or a userset
// ("group:eng#member").
type SubjectRef struct {
	Type     string
	ID       string
	Relation string // non-empty for usersets
}

func (s SubjectRef) IsUserset() bool { return s.Relation != "" }

func (s SubjectRef) String() string {
	if s.IsUserset() {
		return s.Type + ":" + s.ID + "#" + s.Relation
	}
	return s.Type + ":" + s.ID
}

// Tuple is the atom of authorization data: one (tenant, object, relation,
// subject) grant. A tuple lives in exactly one tenant - the object's. A
// cross-tenant share is still a single tuple in the sharing tenant, with
// the subject's foreign home tenant folded into SubjectID as "id@tenant"
// (see SharedRelationPrefix) rather than carried as a second tenant column.
type Tuple struct {
	Tenant          string
	ObjectType      string
	ObjectID        string
	Relation        string
	SubjectType     string
	SubjectID       string
	SubjectRelation string // empty unless the subject is a userset
	ExpiresAt       *time.Time
	CreatedAt       time.Time
}

// Object returns the tuple's object as an ObjectRef.
func (t Tuple) Object() ObjectRef { return ObjectRef{Type: t.ObjectType, ID: t.ObjectID} }

// Subject returns the tuple's subject as a SubjectRef.
func (t Tuple) Subject() SubjectRef {
	return SubjectRef{Type: t.SubjectType, ID: t.SubjectID, Relation: t.SubjectRelation}
}

// Expired reports whether the tuple's expires_at has passed as of now.
func (t Tuple) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// Key is the tuple primary key: all identifying columns excluding
// timestamps.
type Key struct {
	Tenant          string
	ObjectType      string
	ObjectID        string
	Relation        string
	SubjectType     string
	SubjectID       string
	SubjectRelation string
}

// Key returns the tuple's primary key.
func (t Tuple) Key() Key {
	return Key{
		Tenant:          t.Tenant,
		ObjectType:      t.ObjectType,
		ObjectID:        t.ObjectID,
		Relation:        t.Relation,
		SubjectType:     t.SubjectType,
		SubjectID:       t.SubjectID,
		SubjectRelation: t.SubjectRelation,
	}
}

// ChangeKind distinguishes a write from a delete in the change log.
type ChangeKind int

const (
	ChangeWrite ChangeKind = iota
	ChangeDelete
)

func (k ChangeKind) String() string {
	if k == ChangeDelete {
		return "delete"
	}
	return "write"
}

// ChangeEntry is one row of the append-only, per-tenant change log.
type ChangeEntry struct {
	Seq    int64
	Tenant string
	Before *Tuple
	After  *Tuple
	Kind   ChangeKind
	Ts     time.Time
}

// Sentinel errors, paired with Is<X>Err helpers rather than typed errors.
var (
	// ErrConflict is returned when a transactional write loses to a
	// concurrent delete of the same object, or when an optimistic
	// expected_seq is stale.
	ErrConflict = errors.New("store: write conflict")

	// ErrTenantGone is returned for any operation against a tombstoned
	// tenant.
	ErrTenantGone = errors.New("store: tenant is gone")

	// ErrCycle is returned when a parent-relation write would introduce a
	// cycle in the object ancestry graph.
	ErrCycle = errors.New("store: parent relation would form a cycle")

	// ErrNotFound is returned by Delete when the primary key does not
	// exist. Delete is otherwise idempotent, so callers that don't care
	// whether the tuple was already gone may ignore this error.
	ErrNotFound = errors.New("store: tuple not found")
)

func IsConflict(err error) bool  { return errors.Is(err, ErrConflict) }
func IsTenantGone(err error) bool { return errors.Is(err, ErrTenantGone) }
func IsCycle(err error) bool     { return errors.Is(err, ErrCycle) }
func IsNotFound(err error) bool  { return errors.Is(err, ErrNotFound) }

// WriteConflictError wraps ErrConflict with the key that lost the race.
type WriteConflictError struct {
	Key Key
	Err error
}

func (e *WriteConflictError) Error() string {
	return fmt.Sprintf("store: conflict writing %s: %v", e.Key, e.Err)
}
func (e *WriteConflictError) Unwrap() error { return ErrConflict }

func (k Key) String() string {
	s := fmt.Sprintf("%s/%s:%s#%s@%s:%s", k.Tenant, k.ObjectType, k.ObjectID, k.Relation, k.SubjectType, k.SubjectID)
	if k.SubjectRelation != "" {
		s += "#" + k.SubjectRelation
	}
	return s
}

// ParentRelation is the well-known relation name that encodes object
// ancestry (folder trees, org->repo, etc). Writes on this relation are
// checked for acyclicity: a parent cycle would make ancestry resolution
// loop forever.
const ParentRelation = "parent"

// SharedRelationPrefix marks a relation as a cross-tenant share: a tuple
// written on a "shared_"-prefixed relation grants access to a subject whose
// SubjectID is qualified as "id@tenant" rather than a bare ID, and the
// evaluator only honors the qualification on relations carrying this
// prefix so an ordinary same-tenant "@" in an ID can't be misread as one.
const SharedRelationPrefix = "shared_"

// Store is the durable tuple store and change log contract. A successful
// Write is visible to subsequent reads from the same process immediately;
// cross-process visibility is bounded by how often callers poll
// ChangelogScan.
type Store interface {
	// Write inserts a tuple, returning the change-log seq it was assigned.
	// Idempotent: writing an identical tuple that already exists returns
	// the seq of its original insertion without emitting a new change-log
	// entry.
	Write(ctx context.Context, t Tuple) (seq int64, err error)

	// Delete removes the tuple identified by pk. Idempotent: deleting an
	// already-absent tuple returns ErrNotFound, which callers that only
	// care about "the tuple isn't there" should ignore.
	Delete(ctx context.Context, pk Key) (seq int64, err error)

	// LookupByObject returns tuples for (tenant, objectType, objectID),
	// optionally filtered to one relation. Pass relation="" for all
	// relations on the object.
	LookupByObject(ctx context.Context, tenant, objectType, objectID, relation string) ([]Tuple, error)

	// LookupBySubject returns tuples for (tenant, subjectType, subjectID),
	// optionally filtered to one relation. Requires a reverse index in the
	// backing store.
	LookupBySubject(ctx context.Context, tenant, subjectType, subjectID, relation string) ([]Tuple, error)

	// LookupTupleset follows a tupleset_relation from an object to the
	// objects it references, for tuple_to_userset rewrite evaluation.
	LookupTupleset(ctx context.Context, tenant, objectType, objectID, tuplesetRelation string) ([]ObjectRef, error)

	// ChangelogScan returns up to max change-log entries for tenant with
	// seq > sinceSeq, in seq order.
	ChangelogScan(ctx context.Context, tenant string, sinceSeq int64, max int) ([]ChangeEntry, error)

	// CurrentSeq returns the highest change-log seq written for tenant so
	// far, used as the consistency token returned alongside decisions.
	CurrentSeq(ctx context.Context, tenant string) (int64, error)
}

// Package engine walks a schema.Model's Rule trees against a store.Store
// to answer Check/Expand/Filter questions. Evaluator is the graph walker
// (no deduplication, and no caching beyond the optional Leopard membership
// index); Checker (checker.go) wraps it
// with the cache hierarchy, deduplication, and bulk planning.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nexi-lab/nexus-sub005/internal/interner"
	"github.com/nexi-lab/nexus-sub005/schema"
	"github.com/nexi-lab/nexus-sub005/store"
)

// SchemaSource resolves the current authorization model for a tenant. It
// is an interface, not a concrete type, so the engine package can be
// tested against a fixed in-memory model without depending on however the
// real schema registry loads and caches models per tenant.
type SchemaSource interface {
	Model(ctx context.Context, tenant string) (schema.Model, error)
}

// Evaluator resolves Check requests by walking Rule trees directly against
// a Store. The only cache it consults is the optional Leopard index (see
// the Leopard field); with Leopard nil, every call re-derives its answer
// from store reads, which is how Checker serves Strong-mode checks.
type Evaluator struct {
	store   store.Store
	schemas SchemaSource

	// Leopard, when set, lets evalThis resolve a userset-tuple (group
	// membership) branch via an O(1) cache lookup before falling back to
	// a live graph walk, and seeds the cache with what it learns along the
	// way. Nil means every membership check walks the graph live.
	Leopard LeopardIndex
	// Interner converts subject/group identities to Syms for Leopard
	// lookups. Required only when Leopard is set.
	Interner *interner.Interner

	// MaxDepth bounds recursion to guard against pathological or
	// maliciously deep schemas; exceeding it returns ErrDepthExceeded
	// rather than recursing until the goroutine stack overflows.
	MaxDepth int

	// retry governs transient store-error retries (network hiccups
	// against store/postgres); store/memory never needs it.
	retry func() backoff.BackOff
}

// NewEvaluator constructs an Evaluator with MaxDepth 25, matching the depth
// OpenFGA's own resolution-too-complex guard uses. Store errors are retried
// with exponential backoff from 50ms up to 500ms, 3 attempts in all.
func NewEvaluator(s store.Store, schemas SchemaSource) *Evaluator {
	return &Evaluator{
		store:    s,
		schemas:  schemas,
		MaxDepth: 25,
		retry: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 2 * time.Second
			return backoff.WithMaxRetries(b, 2)
		},
	}
}

type walkState struct {
	tenant  string
	model   schema.Model
	visited map[string]bool
	depth   int
	trace   *TraceStep // nil unless tracing
	token   int64      // highest change-log seq consulted
}

func visitKey(object store.ObjectRef, relation string) string {
	return object.Type + ":" + object.ID + "#" + relation
}

// Check resolves whether principal satisfies relation on object, walking
// the schema's rule tree and the store's tuples directly.
func (e *Evaluator) Check(ctx context.Context, tenant string, object store.ObjectRef, relation string, principal Principal) (Decision, error) {
	return e.check(ctx, tenant, object, relation, principal, false)
}

// Explain behaves like Check but also returns the rule-tree trace that
// produced the decision.
func (e *Evaluator) Explain(ctx context.Context, tenant string, object store.ObjectRef, relation string, principal Principal) (Decision, error) {
	return e.check(ctx, tenant, object, relation, principal, true)
}

func (e *Evaluator) check(ctx context.Context, tenant string, object store.ObjectRef, relation string, principal Principal, trace bool) (Decision, error) {
	model, err := e.schemas.Model(ctx, tenant)
	if err != nil {
		return Decision{}, err
	}

	st := &walkState{tenant: tenant, model: model, visited: map[string]bool{}}
	if seq, err := e.store.CurrentSeq(ctx, tenant); err == nil {
		st.token = seq
	}
	var root *TraceStep
	if trace {
		root = &TraceStep{}
		st.trace = root
	}

	allowed, err := e.resolve(ctx, st, object, relation, principal)
	if err != nil {
		return Decision{}, &CheckError{Object: object.String(), Relation: relation, Err: err}
	}

	d := Decision{Allowed: allowed, Token: st.token}
	if trace {
		d.Trace = &Trace{Object: object.String(), Relation: relation, Steps: []TraceStep{*root}}
	}
	return d, nil
}

func (e *Evaluator) resolve(ctx context.Context, st *walkState, object store.ObjectRef, relation string, principal Principal) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	st.depth++
	defer func() { st.depth-- }()
	if st.depth > e.MaxDepth {
		return false, ErrDepthExceeded
	}

	key := visitKey(object, relation)
	if st.visited[key] {
		return false, ErrCycleDetected
	}
	st.visited[key] = true
	defer delete(st.visited, key)

	typeDef, ok := st.model.Type(object.Type)
	if !ok {
		return false, ErrUnknownType
	}
	relDef, ok := typeDef.Relation(relation)
	if !ok {
		return false, ErrUnknownRelation
	}

	step := st.trace
	if step != nil {
		step.Object, step.Relation = object.String(), relation
	}

	allowed, err := e.evalRule(ctx, st, object, relation, relDef.Rule, principal, step)
	if step != nil {
		step.Rule = relDef.Rule.Kind.String()
		step.Satisfied = allowed
	}
	return allowed, err
}

func (e *Evaluator) evalRule(ctx context.Context, st *walkState, object store.ObjectRef, relation string, rule schema.Rule, principal Principal, step *TraceStep) (bool, error) {
	switch rule.Kind {
	case schema.This:
		return e.evalThis(ctx, st, object, relation, principal, step)

	case schema.Computed:
		return e.resolveChild(ctx, st, object, rule.Relation, principal, step)

	case schema.TupleToUserset:
		return e.evalTupleToUserset(ctx, st, object, rule, principal, step)

	case schema.Union:
		for _, c := range rule.Children {
			child := childStep(step)
			ok, err := e.evalRule(ctx, st, object, relation, c, principal, child)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case schema.Intersection:
		for _, c := range rule.Children {
			child := childStep(step)
			ok, err := e.evalRule(ctx, st, object, relation, c, principal, child)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case schema.Exclusion:
		base, err := e.evalRule(ctx, st, object, relation, rule.Children[0], principal, childStep(step))
		if err != nil {
			return false, err
		}
		if !base {
			return false, nil
		}
		excluded, err := e.evalRule(ctx, st, object, relation, rule.Children[1], principal, childStep(step))
		if err != nil {
			return false, err
		}
		return !excluded, nil

	default:
		return false, ErrUnknownRelation
	}
}

func childStep(parent *TraceStep) *TraceStep {
	if parent == nil {
		return nil
	}
	parent.Children = append(parent.Children, TraceStep{})
	return &parent.Children[len(parent.Children)-1]
}

func (e *Evaluator) resolveChild(ctx context.Context, st *walkState, object store.ObjectRef, relation string, principal Principal, step *TraceStep) (bool, error) {
	if step != nil {
		step.Object, step.Relation = object.String(), relation
	}
	ok, err := e.resolveNoDepthBump(ctx, st, object, relation, principal)
	if step != nil {
		step.Satisfied = ok
	}
	return ok, err
}

// resolveNoDepthBump re-enters resolve (for Computed edges on the same
// object, and for a userset tuple's subject relation), sharing the caller's
// depth counter rather than
// double-counting: a 10-relation implied-by chain is one unit of schema
// complexity, not ten units of recursion depth.
func (e *Evaluator) resolveNoDepthBump(ctx context.Context, st *walkState, object store.ObjectRef, relation string, principal Principal) (bool, error) {
	st.depth--
	defer func() { st.depth++ }()
	return e.resolve(ctx, st, object, relation, principal)
}

func (e *Evaluator) evalThis(ctx context.Context, st *walkState, object store.ObjectRef, relation string, principal Principal, step *TraceStep) (bool, error) {
	var tuples []store.Tuple
	err := e.withRetry(ctx, func() error {
		var err error
		tuples, err = e.store.LookupByObject(ctx, st.tenant, object.Type, object.ID, relation)
		return err
	})
	if err != nil {
		return false, err
	}

	// A cross-tenant principal only matches tuples on a shared_* relation,
	// against its tenant-qualified identity; the wildcard subject never
	// applies across tenants since it was never written with a tenant in
	// mind.
	crossTenant := principal.CrossTenant(st.tenant)
	if crossTenant && !strings.HasPrefix(relation, store.SharedRelationPrefix) {
		return false, nil
	}
	identity := principal.identity(st.tenant)

	for _, t := range tuples {
		if t.Expired(now()) {
			continue
		}

		if t.SubjectRelation == "" {
			if t.SubjectType != principal.Type {
				continue
			}
			if t.SubjectID == identity || (!crossTenant && t.SubjectID == "*") {
				if step != nil {
					step.Via = "store"
				}
				return true, nil
			}
			continue
		}

		if crossTenant {
			// A userset subject (a group) is never itself qualified
			// across tenants; a cross-tenant grant must name the
			// receiving subject directly.
			continue
		}

		if e.tryLeopard(ctx, st.tenant, identity, t) {
			return true, nil
		}

		// Userset tuple: grant holds if principal satisfies
		// SubjectRelation on the referenced subject object.
		ok, err := e.resolveNoDepthBump(ctx, st, store.ObjectRef{Type: t.SubjectType, ID: t.SubjectID}, t.SubjectRelation, principal)
		if err != nil {
			return false, err
		}
		e.seedLeopard(ctx, st.tenant, identity, t, ok)
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// tryLeopard answers a userset-tuple membership check from the Leopard
// Index when a prior resolution already confirmed it. The index only ever
// accumulates confirmed memberships (see seedLeopard), so it is never
// complete enough to certify a negative: a miss here just means fall back
// to a live graph walk, not that membership is denied.
func (e *Evaluator) tryLeopard(ctx context.Context, tenant, identity string, t store.Tuple) bool {
	if e.Leopard == nil || e.Interner == nil {
		return false
	}
	subjectSym := e.Interner.Intern(interner.KindID, identity)
	groups, found := e.Leopard.Members(ctx, tenant, subjectSym, t.SubjectRelation)
	if !found {
		return false
	}
	groupSym := e.Interner.Intern(interner.KindID, store.ObjectRef{Type: t.SubjectType, ID: t.SubjectID}.String())
	for _, g := range groups {
		if g == groupSym {
			return true
		}
	}
	return false
}

// seedLeopard records a freshly-resolved membership result so the next
// identical check hits tryLeopard instead of re-walking the graph.
func (e *Evaluator) seedLeopard(ctx context.Context, tenant, identity string, t store.Tuple, allowed bool) {
	if !allowed || e.Leopard == nil || e.Interner == nil {
		return
	}
	subjectSym := e.Interner.Intern(interner.KindID, identity)
	groupSym := e.Interner.Intern(interner.KindID, store.ObjectRef{Type: t.SubjectType, ID: t.SubjectID}.String())
	groups, _ := e.Leopard.Members(ctx, tenant, subjectSym, t.SubjectRelation)
	for _, g := range groups {
		if g == groupSym {
			return
		}
	}
	e.Leopard.Seed(ctx, tenant, subjectSym, t.SubjectRelation, append(groups, groupSym))
}

func (e *Evaluator) evalTupleToUserset(ctx context.Context, st *walkState, object store.ObjectRef, rule schema.Rule, principal Principal, step *TraceStep) (bool, error) {
	var linked []store.ObjectRef
	err := e.withRetry(ctx, func() error {
		var err error
		linked, err = e.store.LookupTupleset(ctx, st.tenant, object.Type, object.ID, rule.Tupleset)
		return err
	})
	if err != nil {
		return false, err
	}

	for _, l := range linked {
		ok, err := e.resolve(ctx, st, l, rule.Relation, principal)
		if err != nil {
			return false, err
		}
		if ok {
			if step != nil {
				step.Via = "store:tupleset"
			}
			return true, nil
		}
	}
	return false, nil
}

// withRetry retries a store read against transient failures with bounded
// exponential backoff, grounded on the same cenkalti/backoff usage the
// rest of the pack's infra-adjacent repos reach for around flaky network
// calls. Reads only: retrying a Write could double a non-idempotent side
// effect, so Write/Delete never go through this path.
func (e *Evaluator) withRetry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if store.IsTenantGone(err) || store.IsNotFound(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(e.retry(), ctx))
}

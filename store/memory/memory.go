// Package memory is an in-process Store implementation backed by Go maps.
// It is used by the engine's own tests and by embedders that don't need
// PostgreSQL-backed durability; every derived cache in the core must be
// reconstructable from a Store plus the schema registry, and this backend
// is the cheapest way to exercise that property.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nexi-lab/nexus-sub005/store"
)

// entry pairs a stored tuple with the change-log seq it was written at, so
// a repeat Write of an identical tuple can return the original seq without
// a new in-memory wrapper field on store.Tuple itself.
type entry struct {
	tuple store.Tuple
	seq   int64
}

type tenantState struct {
	mu        sync.RWMutex
	byObject  map[string]map[store.Key]entry // "type:id" -> key -> entry
	bySubject map[string]map[store.Key]entry // "type:id" -> key -> entry
	changelog []store.ChangeEntry
	seq       int64
	gone      bool
}

// Store is an in-memory Store. The zero value is not usable; use New.
type Store struct {
	mu      sync.Mutex
	tenants map[string]*tenantState
	now     func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		tenants: make(map[string]*tenantState),
		now:     time.Now,
	}
}

func (s *Store) tenant(id string) *tenantState {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		t = &tenantState{
			byObject:  make(map[string]map[store.Key]entry),
			bySubject: make(map[string]map[store.Key]entry),
		}
		s.tenants[id] = t
	}
	return t
}

// Tombstone marks a tenant as gone; all further operations against it
// return store.ErrTenantGone.
func (s *Store) Tombstone(tenantID string) {
	t := s.tenant(tenantID)
	t.mu.Lock()
	t.gone = true
	t.mu.Unlock()
}

func objectKey(objType, objID string) string { return objType + ":" + objID }

func (s *Store) Write(ctx context.Context, tup store.Tuple) (int64, error) {
	t := s.tenant(tup.Tenant)
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.gone {
		return 0, store.ErrTenantGone
	}

	if tup.CreatedAt.IsZero() {
		tup.CreatedAt = s.now()
	}

	pk := tup.Key()
	ok := objectKey(tup.ObjectType, tup.ObjectID)
	if existing, ok2 := t.byObject[ok][pk]; ok2 {
		// Idempotent: identical tuple already present.
		return existing.seq, nil
	}

	if tup.Relation == store.ParentRelation {
		if err := t.checkAcyclicLocked(tup); err != nil {
			return 0, err
		}
	}

	t.seq++
	seq := t.seq
	e := entry{tuple: tup, seq: seq}

	if t.byObject[ok] == nil {
		t.byObject[ok] = make(map[store.Key]entry)
	}
	t.byObject[ok][pk] = e

	sk := objectKey(tup.SubjectType, tup.SubjectID)
	if t.bySubject[sk] == nil {
		t.bySubject[sk] = make(map[store.Key]entry)
	}
	t.bySubject[sk][pk] = e

	after := tup
	t.changelog = append(t.changelog, store.ChangeEntry{
		Seq:    seq,
		Tenant: tup.Tenant,
		After:  &after,
		Kind:   store.ChangeWrite,
		Ts:     s.now(),
	})

	return seq, nil
}

func (s *Store) Delete(ctx context.Context, pk store.Key) (int64, error) {
	t := s.tenant(pk.Tenant)
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.gone {
		return 0, store.ErrTenantGone
	}

	ok := objectKey(pk.ObjectType, pk.ObjectID)
	existing, found := t.byObject[ok][pk]
	if !found {
		return 0, store.ErrNotFound
	}

	delete(t.byObject[ok], pk)
	sk := objectKey(pk.SubjectType, pk.SubjectID)
	delete(t.bySubject[sk], pk)

	t.seq++
	seq := t.seq
	before := existing.tuple
	t.changelog = append(t.changelog, store.ChangeEntry{
		Seq:    seq,
		Tenant: pk.Tenant,
		Before: &before,
		Kind:   store.ChangeDelete,
		Ts:     s.now(),
	})

	return seq, nil
}

func (s *Store) LookupByObject(ctx context.Context, tenant, objectType, objectID, relation string) ([]store.Tuple, error) {
	t := s.tenant(tenant)
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.gone {
		return nil, store.ErrTenantGone
	}

	var out []store.Tuple
	for _, e := range t.byObject[objectKey(objectType, objectID)] {
		if relation == "" || e.tuple.Relation == relation {
			out = append(out, e.tuple)
		}
	}
	sortTuples(out)
	return out, nil
}

func (s *Store) LookupBySubject(ctx context.Context, tenant, subjectType, subjectID, relation string) ([]store.Tuple, error) {
	t := s.tenant(tenant)
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.gone {
		return nil, store.ErrTenantGone
	}

	var out []store.Tuple
	for _, e := range t.bySubject[objectKey(subjectType, subjectID)] {
		if relation == "" || e.tuple.Relation == relation {
			out = append(out, e.tuple)
		}
	}
	sortTuples(out)
	return out, nil
}

func (s *Store) LookupTupleset(ctx context.Context, tenant, objectType, objectID, tuplesetRelation string) ([]store.ObjectRef, error) {
	tuples, err := s.LookupByObject(ctx, tenant, objectType, objectID, tuplesetRelation)
	if err != nil {
		return nil, err
	}
	out := make([]store.ObjectRef, 0, len(tuples))
	for _, tup := range tuples {
		out = append(out, store.ObjectRef{Type: tup.SubjectType, ID: tup.SubjectID})
	}
	return out, nil
}

func (s *Store) ChangelogScan(ctx context.Context, tenant string, sinceSeq int64, max int) ([]store.ChangeEntry, error) {
	t := s.tenant(tenant)
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.gone {
		return nil, store.ErrTenantGone
	}

	var out []store.ChangeEntry
	for _, e := range t.changelog {
		if e.Seq > sinceSeq {
			out = append(out, e)
			if max > 0 && len(out) >= max {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) CurrentSeq(ctx context.Context, tenant string) (int64, error) {
	t := s.tenant(tenant)
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.seq, nil
}

// checkAcyclicLocked verifies that adding tup (a parent-relation edge from
// object to subject-as-parent) does not create a cycle among objects of the
// same type. Must be called with t.mu held for writing.
//
// A parent edge points object -> subject (child -> parent). A cycle exists
// if subject can already reach object by following further parent edges.
func (t *tenantState) checkAcyclicLocked(tup store.Tuple) error {
	if tup.ObjectType != tup.SubjectType {
		// Cross-type parent edges (e.g. repository -> organization) cannot
		// cycle back to the same object type in this simplified acyclicity
		// check; same-type chains (folder -> folder) are the ones at risk.
		return nil
	}

	start := objectKey(tup.SubjectType, tup.SubjectID)
	target := objectKey(tup.ObjectType, tup.ObjectID)

	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == target {
			return store.ErrCycle
		}
		for _, e := range t.byObject[cur] {
			if e.tuple.Relation != store.ParentRelation {
				continue
			}
			next := objectKey(e.tuple.SubjectType, e.tuple.SubjectID)
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return nil
}

func sortTuples(ts []store.Tuple) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Relation != ts[j].Relation {
			return ts[i].Relation < ts[j].Relation
		}
		return ts[i].SubjectID < ts[j].SubjectID
	})
}

var _ store.Store = (*Store)(nil)

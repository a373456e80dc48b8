// Package leopard implements the Leopard Index: a transitive
// group-membership closure, seeded lazily as the evaluator discovers
// memberships and kept current by the change-log invalidator, so that "which groups
// does this subject transitively belong to" becomes an O(1) map lookup
// instead of a live Computed-chain walk through the evaluator every time.
package leopard

import (
	"context"
	"sync"

	"github.com/nexi-lab/nexus-sub005/engine"
	"github.com/nexi-lab/nexus-sub005/internal/interner"
)

type memberKey struct {
	tenant   string
	subject  interner.Sym
	relation string
}

// Index implements engine.LeopardIndex over a map of subject->groups.
// Population is the caller's responsibility, via Seed; Index itself only
// serves reads and accepts invalidation.
type Index struct {
	mu      sync.RWMutex
	members map[memberKey][]interner.Sym
}

// New builds an empty Index.
func New() *Index {
	return &Index{members: make(map[memberKey][]interner.Sym)}
}

// Seed installs the transitive membership set for (tenant, subject,
// relation), replacing whatever was cached before. Called by the Evaluator
// as it discovers memberships during live graph walks.
func (idx *Index) Seed(ctx context.Context, tenant string, subject interner.Sym, relation string, groups []interner.Sym) {
	idx.mu.Lock()
	idx.members[memberKey{tenant, subject, relation}] = groups
	idx.mu.Unlock()
}

func (idx *Index) Members(ctx context.Context, tenant string, subject interner.Sym, relation string) ([]interner.Sym, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	groups, ok := idx.members[memberKey{tenant, subject, relation}]
	return groups, ok
}

// Invalidate drops the cached closure for one subject#relation; the next
// Members call misses and the caller must re-seed from the store.
func (idx *Index) Invalidate(ctx context.Context, tenant string, subject interner.Sym, relation string) {
	idx.mu.Lock()
	delete(idx.members, memberKey{tenant, subject, relation})
	idx.mu.Unlock()
}

// InvalidateTenant drops every entry for tenant, used when a membership
// tuple write could affect an unknown number of downstream subjects (e.g.
// a group-to-group nesting edge changed).
func (idx *Index) InvalidateTenant(tenant string) {
	idx.mu.Lock()
	for k := range idx.members {
		if k.tenant == tenant {
			delete(idx.members, k)
		}
	}
	idx.mu.Unlock()
}

var _ engine.LeopardIndex = (*Index)(nil)

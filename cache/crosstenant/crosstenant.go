// Package crosstenant implements the Cross-Tenant Grant Index: a cache of
// which principals in a receiving tenant were granted access to a
// resource shared out of another tenant via a shared_* relation. Kept
// separate from the Subproblem Cache because cross-tenant grants
// invalidate along a different axis (the sharing tenant's change log, not
// the receiving tenant's).
package crosstenant

import (
	"context"
	"sync"

	"github.com/nexi-lab/nexus-sub005/engine"
)

type grantKey struct {
	fromTenant, toTenant, object, relation string
}

// Index implements engine.CrossTenantIndex.
type Index struct {
	mu     sync.RWMutex
	grants map[grantKey][]string
}

func New() *Index {
	return &Index{grants: make(map[grantKey][]string)}
}

func (idx *Index) Set(ctx context.Context, fromTenant, toTenant, object, relation string, subjects []string) {
	idx.mu.Lock()
	idx.grants[grantKey{fromTenant, toTenant, object, relation}] = subjects
	idx.mu.Unlock()
}

func (idx *Index) Grants(ctx context.Context, fromTenant, toTenant, object, relation string) ([]string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	subjects, ok := idx.grants[grantKey{fromTenant, toTenant, object, relation}]
	return subjects, ok
}

// Invalidate drops every grant for (fromTenant, object, relation)
// regardless of the receiving tenant, since a share revocation or
// re-grant on the source tuple can change who every receiving tenant sees.
func (idx *Index) Invalidate(ctx context.Context, fromTenant, object, relation string) {
	idx.mu.Lock()
	for k := range idx.grants {
		if k.fromTenant == fromTenant && k.object == object && k.relation == relation {
			delete(idx.grants, k)
		}
	}
	idx.mu.Unlock()
}

var _ engine.CrossTenantIndex = (*Index)(nil)

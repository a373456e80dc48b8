package engine

import (
	"context"

	"github.com/nexi-lab/nexus-sub005/internal/interner"
)

// The cache interfaces below are declared here, not in the cache/* packages
// themselves, so engine never imports cache/* (which would create an
// import cycle the moment a cache package needs an engine type for
// invalidation hooks). Each cache/* package implements the interface that
// matches its role and is wired into a Checker via the With* options in
// checker.go.

// SubproblemCache answers "does subject satisfy relation on object",
// scoped to one subproblem category (membership, ancestry, or grant), each
// with its own TTL.
type SubproblemCache interface {
	Get(ctx context.Context, tenant, category, object, relation, subject string) (allowed bool, ok bool)
	Set(ctx context.Context, tenant, category, object, relation, subject string, allowed bool)
	// Invalidate drops every cached entry for (tenant, object, relation),
	// used by the change-log invalidator on a tuple write/delete.
	Invalidate(ctx context.Context, tenant, object, relation string)
}

// LeopardIndex answers transitive group-membership questions in O(1) once
// warmed: given a subject, which group symbols is it (transitively) a
// member of. Populated lazily by the Evaluator as it discovers memberships
// during live graph walks, and kept current by the change-log invalidator.
type LeopardIndex interface {
	// Members returns the symbols of every group the subject transitively
	// belongs to, for the named membership relation.
	Members(ctx context.Context, tenant string, subject interner.Sym, relation string) (groups []interner.Sym, ok bool)
	// Seed installs the membership set for (tenant, subject, relation),
	// replacing whatever was cached before.
	Seed(ctx context.Context, tenant string, subject interner.Sym, relation string, groups []interner.Sym)
	Invalidate(ctx context.Context, tenant string, subject interner.Sym, relation string)
}

// CrossTenantIndex resolves shared_* relations without the evaluator
// needing to special-case tenant boundaries inline: given a resource
// shared from tenant A, it reports which principals in tenant B were
// granted access and under what relation.
type CrossTenantIndex interface {
	Grants(ctx context.Context, fromTenant, toTenant, object, relation string) (subjects []string, ok bool)
	Set(ctx context.Context, fromTenant, toTenant, object, relation string, subjects []string)
	Invalidate(ctx context.Context, fromTenant, object, relation string)
}

// TigerCache holds a compressed bitmap (RoaringBitmap) of object symbols a
// subject#relation pair is granted, for cheap "list all objects subject
// can see" and "is this one of them" queries without re-deriving from the
// graph each time. Bitmaps are only ever grown with confirmed grants, so a
// miss (object symbol absent) is never treated as an authoritative deny.
type TigerCache interface {
	Bitmap(ctx context.Context, tenant, subject, relation, objectType string) (symbols []interner.Sym, ok bool)
	SetBitmap(ctx context.Context, tenant, subject, relation, objectType string, symbols []interner.Sym)
	// Add records one confirmed grant, creating the bitmap if absent.
	Add(ctx context.Context, tenant, subject, relation, objectType string, sym interner.Sym)
	Invalidate(ctx context.Context, tenant, object, relation string)
}

// VisibilityCache answers "which objects of objectType can subject see at
// all" for directory-listing style queries, distinct from Tiger's
// per-relation bitmaps in that it merges across every relation that
// implies visibility.
type VisibilityCache interface {
	Visible(ctx context.Context, tenant, subject, objectType string) (objects []string, ok bool)
	Invalidate(ctx context.Context, tenant, subjectType, subject string)
}

// FinalCache is the outermost, quantized result cache: the full decision
// for (tenant, object, relation, subject) as of a coarse time bucket, so
// that many requests issued within the same quantum share one cache line
// and one singleflight group instead of recomputing or deduplicating
// against a microsecond-precision key.
type FinalCache interface {
	Get(ctx context.Context, key string) (Decision, bool)
	// Set stores d under key, tagged with the (tenant, object, relation)
	// it answers so Invalidate can target it precisely instead of
	// flushing every quantized entry on any write.
	Set(ctx context.Context, key, tenant, object, relation string, d Decision)
	Invalidate(ctx context.Context, tenant, object, relation string)
}

package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nexi-lab/nexus-sub005/dedup"
	"github.com/nexi-lab/nexus-sub005/internal/interner"
	"github.com/nexi-lab/nexus-sub005/store"
)

// Checker is the public entry point: Check/BulkCheck/Filter/Expand wrap an
// Evaluator with the cache hierarchy, request deduplication, and bulk
// planning. Checkers are cheap to construct per request and safe for
// concurrent use.
type Checker struct {
	eval    *Evaluator
	store   store.Store
	schemas SchemaSource

	subproblem  SubproblemCache
	leopard     LeopardIndex
	crossTenant CrossTenantIndex
	tiger       TigerCache
	visibility  VisibilityCache
	final       FinalCache

	interner *interner.Interner

	dedup *dedup.Group

	quantum time.Duration

	workers int
}

// Option configures a Checker at construction time.
type Option func(*Checker)

func WithSubproblemCache(c SubproblemCache) Option { return func(ch *Checker) { ch.subproblem = c } }
func WithLeopardIndex(l LeopardIndex) Option       { return func(ch *Checker) { ch.leopard = l } }
func WithCrossTenantIndex(c CrossTenantIndex) Option {
	return func(ch *Checker) { ch.crossTenant = c }
}
func WithTigerCache(c TigerCache) Option           { return func(ch *Checker) { ch.tiger = c } }
func WithVisibilityCache(c VisibilityCache) Option { return func(ch *Checker) { ch.visibility = c } }
func WithFinalCache(c FinalCache) Option           { return func(ch *Checker) { ch.final = c } }

// WithInterner overrides the Checker's symbol table. Defaults to a fresh
// interner.New(); only worth overriding to share one interner across
// multiple Checkers backed by the same Tiger/Leopard caches.
func WithInterner(in *interner.Interner) Option { return func(ch *Checker) { ch.interner = in } }

// WithQuantum sets the time bucket width used to derive the Final Cache
// key: requests for the same subproblem within the same bucket share one
// cache line and one in-flight deduplication group. Defaults to 1 second.
func WithQuantum(d time.Duration) Option { return func(ch *Checker) { ch.quantum = d } }

// WithWorkers sets how many goroutines BulkCheck runs concurrently.
// Defaults to 8.
func WithWorkers(n int) Option { return func(ch *Checker) { ch.workers = n } }

// NewChecker constructs a Checker over s using schemas as the schema source.
// Cache layers are optional: an uninstalled cache is simply skipped, so a
// bare NewChecker(s, schemas) with no options is a correct (if uncached)
// Checker, useful in tests. Options are applied before the Evaluator is
// wired up so that a WithLeopardIndex/WithInterner option reaches the
// Evaluator's own lazy-membership fast path, not just the Checker.
func NewChecker(s store.Store, schemas SchemaSource, opts ...Option) *Checker {
	ch := &Checker{
		store:    s,
		schemas:  schemas,
		interner: interner.New(),
		dedup:    dedup.New(),
		quantum:  time.Second,
		workers:  8,
	}
	for _, opt := range opts {
		opt(ch)
	}

	ch.eval = NewEvaluator(s, schemas)
	ch.eval.Leopard = ch.leopard
	ch.eval.Interner = ch.interner

	return ch
}

func (c *Checker) quantizedKey(tenant, object, relation, subject string, consistency Consistency) string {
	if consistency.Mode == Strong {
		return ""
	}
	bucket := now().Truncate(c.quantum).Unix()
	return fmt.Sprintf("%s|%s|%s|%s|%d", tenant, object, relation, subject, bucket)
}

// satisfiesConsistency reports whether a cached d is fresh enough to serve
// for consistency. Eventual and Strong never reject a cache hit here (Strong
// never produces one, since quantizedKey returns "" for it); Bounded rejects
// any decision stamped with a token older than the one the caller asked for,
// so a stale Final Cache entry falls through to a live re-evaluation instead
// of being returned.
func satisfiesConsistency(d Decision, consistency Consistency) bool {
	if consistency.Mode != Bounded {
		return true
	}
	return d.Token >= consistency.Token
}

// Check answers whether principal satisfies relation on object, consulting
// the Final Cache first (unless consistency requires otherwise), then
// deduplicating concurrent identical in-flight requests, then falling
// through to the cache-gated subproblem path.
func (c *Checker) Check(ctx context.Context, tenant string, object store.ObjectRef, relation string, principal Principal, consistency Consistency) (Decision, error) {
	key := c.quantizedKey(tenant, object.String(), relation, principal.String(), consistency)

	if key != "" && c.final != nil {
		if d, ok := c.final.Get(ctx, key); ok && satisfiesConsistency(d, consistency) {
			return d, nil
		}
	}

	v, _, err := c.dedup.Do(ctx, dedupKey(key, tenant, object, relation, principal), func() (any, error) {
		d, err := c.checkGated(ctx, tenant, object, relation, principal, consistency)
		if err != nil {
			return nil, err
		}
		if key != "" && c.final != nil {
			c.final.Set(ctx, key, tenant, object.String(), relation, d)
		}
		return d, nil
	})
	if err != nil {
		return Decision{}, err
	}
	return v.(Decision), nil
}

func dedupKey(quantized string, tenant string, object store.ObjectRef, relation string, principal Principal) string {
	if quantized != "" {
		return quantized
	}
	return tenant + "|" + object.String() + "|" + relation + "|" + principal.String() + "|strong"
}

// checkGated is the read path's cache-hierarchy stage: Tiger first (a
// same-request-cheap bitmap probe that can only ever confirm an allow, never
// a deny), then either the Cross-Tenant Index or the Subproblem Cache
// depending on whether principal is local to tenant, with the Evaluator as
// the final fallback. A Tiger hit short-circuits the rest of the chain; a
// miss falls through exactly as if Tiger weren't installed.
func (c *Checker) checkGated(ctx context.Context, tenant string, object store.ObjectRef, relation string, principal Principal, consistency Consistency) (Decision, error) {
	if consistency.Mode == Eventual && c.tryTiger(ctx, tenant, object, relation, principal) {
		return Decision{Allowed: true}, nil
	}

	var d Decision
	var err error
	if principal.CrossTenant(tenant) {
		d, err = c.checkCrossTenant(ctx, tenant, object, relation, principal, consistency)
	} else {
		d, err = c.checkSubproblem(ctx, tenant, object, relation, principal, consistency)
	}
	if err != nil {
		return Decision{}, err
	}

	c.updateTiger(ctx, tenant, object, relation, principal, d.Allowed)
	return d, nil
}

// tryTiger answers from the Tiger bitmap when installed, returning true only
// on a confirmed match. The bitmap is grown incrementally by updateTiger as
// grants are confirmed, so it is never complete for a given subject#relation;
// a miss here means "unknown", not "denied", and the caller must fall
// through to a live evaluation rather than treat it as authoritative.
func (c *Checker) tryTiger(ctx context.Context, tenant string, object store.ObjectRef, relation string, principal Principal) bool {
	if c.tiger == nil || c.interner == nil {
		return false
	}
	subject := principal.identity(tenant)
	symbols, ok := c.tiger.Bitmap(ctx, tenant, subject, relation, object.Type)
	if !ok {
		return false
	}
	objSym := c.interner.Intern(interner.KindID, object.String())
	for _, s := range symbols {
		if s == objSym {
			return true
		}
	}
	return false
}

// updateTiger records a confirmed allow in the Tiger bitmap so a later
// identical check can skip straight past the Subproblem Cache and Evaluator.
// Denials are never recorded: the bitmap only ever grows with confirmed
// grants.
func (c *Checker) updateTiger(ctx context.Context, tenant string, object store.ObjectRef, relation string, principal Principal, allowed bool) {
	if !allowed || c.tiger == nil || c.interner == nil {
		return
	}
	subject := principal.identity(tenant)
	objSym := c.interner.Intern(interner.KindID, object.String())
	c.tiger.Add(ctx, tenant, subject, relation, object.Type, objSym)
}

// checkCrossTenant resolves a principal whose home tenant differs from the
// object's via the Cross-Tenant Index before falling through to a live
// check. Like Tiger, an index hit can only confirm an allow: the index is
// grown from confirmed grants discovered by live checks, so a miss just
// means fall through.
func (c *Checker) checkCrossTenant(ctx context.Context, tenant string, object store.ObjectRef, relation string, principal Principal, consistency Consistency) (Decision, error) {
	identity := principal.identity(tenant)

	if c.crossTenant != nil && consistency.Mode == Eventual {
		if subjects, ok := c.crossTenant.Grants(ctx, tenant, principal.Tenant, object.String(), relation); ok && containsStr(subjects, identity) {
			return Decision{Allowed: true}, nil
		}
	}

	d, err := c.checkSubproblem(ctx, tenant, object, relation, principal, consistency)
	if err != nil {
		return Decision{}, err
	}

	if c.crossTenant != nil && d.Allowed {
		existing, _ := c.crossTenant.Grants(ctx, tenant, principal.Tenant, object.String(), relation)
		if !containsStr(existing, identity) {
			c.crossTenant.Set(ctx, tenant, principal.Tenant, object.String(), relation, append(existing, identity))
		}
	}

	return d, nil
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// checkSubproblem consults the Subproblem Cache before falling through to
// the live Evaluator, caching the result afterward. An Evaluator error
// reporting an unknown object type or relation is not propagated: per the
// schema, a permission or type the model doesn't define resolves to a plain
// denial rather than a caller-visible failure.
func (c *Checker) checkSubproblem(ctx context.Context, tenant string, object store.ObjectRef, relation string, principal Principal, consistency Consistency) (Decision, error) {
	if c.subproblem != nil && consistency.Mode == Eventual {
		if allowed, ok := c.subproblem.Get(ctx, tenant, "grant", object.String(), relation, principal.String()); ok {
			return Decision{Allowed: allowed}, nil
		}
	}

	eval := c.eval
	if consistency.Mode == Strong && eval.Leopard != nil {
		bypass := *eval
		bypass.Leopard = nil
		eval = &bypass
	}
	d, err := eval.Check(ctx, tenant, object, relation, principal)
	if err != nil {
		if IsUnknownTypeErr(err) || IsUnknownRelationErr(err) {
			return Decision{Allowed: false}, nil
		}
		return Decision{}, err
	}

	if c.subproblem != nil {
		c.subproblem.Set(ctx, tenant, "grant", object.String(), relation, principal.String(), d.Allowed)
	}

	return d, nil
}

// Explain behaves like Check but always bypasses every cache layer and
// returns the full rule-tree trace, since a cached boolean carries none of
// the path information Explain exists to surface. Unlike Check, an unknown
// type or relation still surfaces as an error here: Explain is a
// diagnostic tool, and silently reporting "denied" for a model mistake
// would hide the mistake from the caller trying to find it.
func (c *Checker) Explain(ctx context.Context, tenant string, object store.ObjectRef, relation string, principal Principal) (Decision, error) {
	bypass := *c.eval
	bypass.Leopard = nil
	return bypass.Explain(ctx, tenant, object, relation, principal)
}

// Must panics if Check errors or denies, for call sites (migrations,
// admin tools) that treat "not allowed" as a programming error rather
// than a result to branch on.
func (c *Checker) Must(ctx context.Context, tenant string, object store.ObjectRef, relation string, principal Principal, consistency Consistency) {
	d, err := c.Check(ctx, tenant, object, relation, principal, consistency)
	if err != nil {
		panic(fmt.Sprintf("engine: Must: %v", err))
	}
	if !d.Allowed {
		panic(fmt.Sprintf("engine: Must: %s denied %s#%s", principal, object, relation))
	}
}

// BulkCheck evaluates every request concurrently across c.workers
// goroutines, preserving input order in the returned slice so callers can
// zip requests to results by index. Before fanning out, it partitions off
// whatever Tiger can already confirm and prefetches the Subproblem Cache for
// the rest in one batch per distinct principal, so the per-request fan-out
// below mostly hits cache instead of issuing one store round trip per item.
func (c *Checker) BulkCheck(ctx context.Context, tenant string, reqs []BulkCheckRequest, consistency Consistency) []BulkCheckResult {
	results := make([]BulkCheckResult, len(reqs))

	pending := c.partitionTiger(ctx, tenant, reqs, results, consistency)
	if len(pending) == 0 {
		return results
	}

	c.prefetchSubproblem(ctx, tenant, pending, reqs, consistency)

	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup
	for _, i := range pending {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			req := reqs[i]
			d, err := c.Check(ctx, tenant, req.Object, req.Relation, req.Principal, consistency)
			results[i] = BulkCheckResult{Request: req, Decision: d, Err: err}
		}(i)
	}
	wg.Wait()

	return results
}

// partitionTiger resolves every request Tiger can already confirm, filling
// results in place, and returns the indexes still needing a live check.
// Strong and Bounded modes skip Tiger entirely (a bitmap hit can't be
// stamped with a token and so can never satisfy Bounded, and Strong bypasses
// every cache by definition), falling back to treating every request as
// pending.
func (c *Checker) partitionTiger(ctx context.Context, tenant string, reqs []BulkCheckRequest, results []BulkCheckResult, consistency Consistency) []int {
	pending := make([]int, 0, len(reqs))
	if consistency.Mode != Eventual || c.tiger == nil {
		for i := range reqs {
			pending = append(pending, i)
		}
		return pending
	}
	for i, req := range reqs {
		if c.tryTiger(ctx, tenant, req.Object, req.Relation, req.Principal) {
			results[i] = BulkCheckResult{Request: req, Decision: Decision{Allowed: true}}
			continue
		}
		pending = append(pending, i)
	}
	return pending
}

// prefetchSubproblem amortizes BulkCheck's store cost: instead of letting
// each pending item's Check independently look up its object's tuples, it
// issues one subject-scoped lookup per distinct local principal up front and
// seeds the Subproblem Cache with every direct grant found, so same-principal
// items in the same batch mostly hit cache instead of repeating store I/O.
// Cross-tenant principals are left out, since a subject-scoped lookup can't
// be qualified by the foreign tenant the way an object-scoped one can.
func (c *Checker) prefetchSubproblem(ctx context.Context, tenant string, pending []int, reqs []BulkCheckRequest, consistency Consistency) {
	if c.subproblem == nil || consistency.Mode != Eventual {
		return
	}

	seen := make(map[Principal]bool)
	for _, i := range pending {
		p := reqs[i].Principal
		if p.CrossTenant(tenant) || seen[p] {
			continue
		}
		seen[p] = true

		tuples, err := c.store.LookupBySubject(ctx, tenant, p.Type, p.ID, "")
		if err != nil {
			continue
		}
		for _, t := range tuples {
			if t.Expired(now()) || t.SubjectRelation != "" {
				continue
			}
			object := store.ObjectRef{Type: t.ObjectType, ID: t.ObjectID}
			c.subproblem.Set(ctx, tenant, "grant", object.String(), t.Relation, p.String(), true)
		}
	}
}

// WriteTuple writes t to the store. It does not touch any cache directly;
// cache invalidation is driven by the change-log invalidator (package
// invalidate) observing the write, so that invalidation happens exactly
// once regardless of how many Checker instances share the underlying
// store.
func (c *Checker) WriteTuple(ctx context.Context, t store.Tuple) (int64, error) {
	return c.store.Write(ctx, t)
}

// DeleteTuple removes the tuple identified by pk.
func (c *Checker) DeleteTuple(ctx context.Context, pk store.Key) (int64, error) {
	return c.store.Delete(ctx, pk)
}

// Package invalidate drives cache invalidation from the durable tuple
// store's change log. One Watcher goroutine per tenant polls
// store.Store.ChangelogScan and, for every observed write or delete,
// invalidates the affected cache layers against the concrete cache types
// directly (not through the engine.* interfaces engine/cache.go declares),
// since invalidate already knows the concrete type it needs and importing
// engine merely to re-derive it would be circular for no benefit.
package invalidate

import (
	"context"
	"log"
	"time"

	"github.com/nexi-lab/nexus-sub005/cache/crosstenant"
	"github.com/nexi-lab/nexus-sub005/cache/final"
	"github.com/nexi-lab/nexus-sub005/cache/leopard"
	"github.com/nexi-lab/nexus-sub005/cache/subproblem"
	"github.com/nexi-lab/nexus-sub005/cache/tiger"
	"github.com/nexi-lab/nexus-sub005/cache/visibility"
	"github.com/nexi-lab/nexus-sub005/store"
)

// Caches bundles the concrete cache layers a Watcher invalidates.
// Any field may be nil, in which case that layer is simply skipped.
type Caches struct {
	Subproblem  *subproblem.Cache
	Leopard     *leopard.Index
	Tiger       *tiger.Cache
	CrossTenant *crosstenant.Index
	Visibility  *visibility.Cache
	Final       *final.Cache
}

// Watcher polls one tenant's change log and invalidates caches for every
// entry it observes, a poll-and-apply changelog consumer generalized from
// one cache to the full cache hierarchy.
type Watcher struct {
	store    store.Store
	tenant   string
	caches   Caches
	sinceSeq int64
	interval time.Duration
	logger   *log.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPollInterval sets how often the Watcher calls ChangelogScan when
// caught up. Defaults to 200ms.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// WithLogger overrides the Watcher's logger. Defaults to log.Default().
func WithLogger(l *log.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithStartSeq sets the change-log seq the Watcher begins scanning after,
// useful for resuming a previously-stopped watcher. Defaults to 0 (scan
// from the beginning of the tenant's log).
func WithStartSeq(seq int64) Option {
	return func(w *Watcher) { w.sinceSeq = seq }
}

// NewWatcher builds a Watcher for tenant over s, invalidating caches.
func NewWatcher(s store.Store, tenant string, caches Caches, opts ...Option) *Watcher {
	w := &Watcher{
		store:    s,
		tenant:   tenant,
		caches:   caches,
		interval: 200 * time.Millisecond,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is canceled. Intended to be started in its own
// goroutine, one per tenant, by the component that owns tenant lifecycle
// (typically cmd/nexus serve).
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.poll(ctx); err != nil {
			if store.IsTenantGone(err) {
				w.logger.Printf("invalidate: tenant %q gone, stopping watcher", w.tenant)
				return
			}
			w.logger.Printf("invalidate: tenant %q: poll error: %v", w.tenant, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

const scanBatch = 500

func (w *Watcher) poll(ctx context.Context) error {
	for {
		entries, err := w.store.ChangelogScan(ctx, w.tenant, w.sinceSeq, scanBatch)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		for _, e := range entries {
			w.apply(e)
			w.sinceSeq = e.Seq
		}
		if len(entries) < scanBatch {
			return nil
		}
	}
}

// apply invalidates every cache layer affected by one change-log entry:
//
//   - Subproblem Cache: drop every cached (object, relation) entry,
//     regardless of subject, since any subject's answer for that
//     subproblem may have flipped.
//   - Tiger Cache: drop bitmaps for (tenant, relation) across every object
//     type, since the tuple changed which symbols belong in them.
//   - Visibility Cache: drop cached listings for the subject side of the
//     change, since what that subject can see may have changed.
//   - Leopard Index: a changed tuple on a membership relation can alter
//     a transitive closure arbitrarily far from the edited edge, so we
//     invalidate the whole tenant's closure rather than attempt a precise
//     incremental update.
//   - Cross-Tenant Index: drop grants recorded from this tenant for the
//     affected (object, relation), regardless of receiving tenant.
//   - Final Cache: drop every quantized decision tagged with the affected
//     (tenant, object, relation).
func (w *Watcher) apply(e store.ChangeEntry) {
	t := e.After
	if t == nil {
		t = e.Before
	}
	if t == nil {
		return
	}

	object := t.Object()
	ctx := context.Background()

	if w.caches.Subproblem != nil {
		w.caches.Subproblem.Invalidate(ctx, e.Tenant, object.String(), t.Relation)
	}
	if w.caches.Tiger != nil {
		w.caches.Tiger.Invalidate(ctx, e.Tenant, object.String(), t.Relation)
	}
	if w.caches.CrossTenant != nil {
		w.caches.CrossTenant.Invalidate(ctx, e.Tenant, object.String(), t.Relation)
	}
	if w.caches.Final != nil {
		w.caches.Final.Invalidate(ctx, e.Tenant, object.String(), t.Relation)
	}
	if w.caches.Visibility != nil {
		w.caches.Visibility.Invalidate(ctx, e.Tenant, t.SubjectType, t.SubjectID)
	}
	if w.caches.Leopard != nil {
		w.caches.Leopard.InvalidateTenant(e.Tenant)
	}
}

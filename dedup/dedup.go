// Package dedup provides thundering-herd request coalescing for Checker's
// Check path: identical concurrent (tenant, object, relation, subject)
// requests within the same time quantum share one evaluation instead of
// each re-deriving the answer. engine.Checker holds a *Group from this
// package; it wraps golang.org/x/sync/singleflight.Group so the coalescing
// policy (what counts as "the same request") is named and testable
// independent of the Checker composition.
package dedup

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Group deduplicates concurrent calls that share a key, returning the
// single in-flight result to every caller, and reports whether a given
// call actually executed fn (shared == false) or rode along on another
// goroutine's in-flight call (shared == true).
type Group struct {
	g singleflight.Group
}

func New() *Group { return &Group{} }

// Do runs fn for key if no call for key is already in flight, otherwise
// waits for and returns that call's result.
func (g *Group) Do(ctx context.Context, key string, fn func() (any, error)) (result any, shared bool, err error) {
	executed := false
	v, err, _ := g.g.Do(key, func() (any, error) {
		executed = true
		return fn()
	})
	return v, !executed, err
}

// Forget removes key from the in-flight set early, useful when a caller
// knows the cached answer it just produced should not be reused by
// latecomers (e.g. the value depended on a context deadline specific to
// the original caller).
func (g *Group) Forget(key string) { g.g.Forget(key) }

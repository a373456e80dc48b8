// Package interner provides an injective, append-only mapping between short
// strings (tenant, subject/object type, id, relation, permission) and 32-bit
// symbols. Fixed-width symbols are what let the rest of the core use bitmaps
// and dense maps instead of string comparisons on every hot path.
package interner

import (
	"fmt"
	"sync"
)

// Sym is a 32-bit symbol assigned to an interned string. Assignment is
// stable for the lifetime of the process (and, with Persister configured,
// across restarts).
type Sym uint32

// Kind namespaces a symbol so the same underlying string ("user", say, used
// both as an object type and a relation name in different schemas) does not
// collide across categories.
type Kind uint8

const (
	KindTenant Kind = iota
	KindType
	KindID
	KindRelation
)

type key struct {
	kind Kind
	s    string
}

// Interner interns strings to symbols and resolves symbols back to strings.
// It is safe for concurrent use. Eviction is intentionally unsupported:
// derived structures (Leopard closures, Tiger bitmaps) hold symbols directly,
// and reassigning or removing one out from under them would be silent
// corruption. Growth is rare and cheap relative to lookups, so reads never
// block on a lock.
type Interner struct {
	mu      sync.Mutex // guards insert-if-absent only; forward/reverse maps are read lock-free via sync.Map
	forward sync.Map   // key -> Sym
	reverse sync.Map   // Sym -> key
	next    uint32
}

// New creates an empty Interner.
func New() *Interner {
	return &Interner{next: 1} // reserve 0 as "no symbol"
}

// Intern returns the symbol for s, assigning a new one on first sight.
// Intern is total and idempotent; it cannot fail except by symbol space
// exhaustion (2^32-1 distinct strings across all kinds, since every kind
// draws from one counter), on which it panics rather than returning an
// error.
func (in *Interner) Intern(kind Kind, s string) Sym {
	k := key{kind, s}
	if v, ok := in.forward.Load(k); ok {
		return v.(Sym)
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	// Re-check under the lock: another goroutine may have inserted while we
	// waited.
	if v, ok := in.forward.Load(k); ok {
		return v.(Sym)
	}
	if in.next == 0 {
		panic(fmt.Sprintf("interner: symbol space exhausted for kind %d", kind))
	}
	sym := Sym(in.next)
	in.next++
	in.forward.Store(k, sym)
	in.reverse.Store(sym, k)
	return sym
}

// Resolve returns the original string for a previously interned symbol.
// Resolve is total for any symbol returned by Intern on this Interner; it
// panics on an unknown symbol, since that indicates a caller handed a
// symbol from a different Interner instance or process.
func (in *Interner) Resolve(sym Sym) string {
	v, ok := in.reverse.Load(sym)
	if !ok {
		panic(fmt.Sprintf("interner: unknown symbol %d", sym))
	}
	return v.(key).s
}

// TryResolve is the non-panicking form of Resolve, useful when a symbol may
// have originated from a different process (e.g. a persisted Tiger bitmap
// read back before the interner has warmed up).
func (in *Interner) TryResolve(sym Sym) (string, bool) {
	v, ok := in.reverse.Load(sym)
	if !ok {
		return "", false
	}
	return v.(key).s, true
}

// Row is one persisted symbol assignment, mirroring the optional
// interner_symbols table a Persister backs onto.
type Row struct {
	Sym  uint32
	Kind Kind
	S    string
}

// Persister loads and saves interned symbols so that Tiger bitmaps (which
// are keyed by Sym, not by string) remain valid across restarts. Persistence
// is optional: if absent, Tiger bitmaps are simply rebuilt cold.
type Persister interface {
	LoadSymbols() ([]Row, error)
	SaveSymbol(row Row) error
}

// LoadFrom seeds the interner from a Persister, preserving the exact
// symbol->string assignments it previously made. Must be called before any
// Intern calls on this Interner, or loaded rows could collide with freshly
// assigned symbols.
func (in *Interner) LoadFrom(p Persister) error {
	rows, err := p.LoadSymbols()
	if err != nil {
		return err
	}
	var maxSym uint32
	for _, r := range rows {
		k := key{r.Kind, r.S}
		in.forward.Store(k, Sym(r.Sym))
		in.reverse.Store(Sym(r.Sym), k)
		if r.Sym > maxSym {
			maxSym = r.Sym
		}
	}
	in.mu.Lock()
	if maxSym+1 > in.next {
		in.next = maxSym + 1
	}
	in.mu.Unlock()
	return nil
}

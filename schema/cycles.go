package schema

import "fmt"

// DetectCycles rejects two classes of ill-formed schema: an implied-by
// cycle within one type's relations (A implies B implies A), and a
// parent-relation cycle across types where following "relation from
// parent" links keeps landing back on a relation that is itself waiting
// on the first (A.r from-parent B.s, B.s from-parent A.r, with r != s).
// Same-relation parent recursion (folder.viewer from-parent folder.viewer)
// is allowed: that's ordinary hierarchical inheritance, not a cycle, since
// each hop moves to a different object instance.
func DetectCycles(types []TypeDefinition) error {
	if err := detectImpliedByCycles(types); err != nil {
		return err
	}
	return detectParentCycles(types)
}

func detectImpliedByCycles(types []TypeDefinition) error {
	for _, t := range types {
		impliedBy := make(map[string][]string) // relation -> relations that imply it
		for _, r := range t.Relations {
			walkComputed(r.Rule, func(implier string) {
				impliedBy[r.Name] = append(impliedBy[r.Name], implier)
			})
		}

		for _, r := range t.Relations {
			visiting := map[string]bool{r.Name: true}
			if cyclic := hasImpliedByCycle(r.Name, impliedBy, visiting); cyclic {
				return fmt.Errorf("%w: type %q has an implied-by cycle starting at relation %q", ErrCyclicSchema, t.Name, r.Name)
			}
		}
	}
	return nil
}

func hasImpliedByCycle(relation string, impliedBy map[string][]string, visiting map[string]bool) bool {
	for _, implier := range impliedBy[relation] {
		if visiting[implier] {
			return true
		}
		visiting[implier] = true
		if hasImpliedByCycle(implier, impliedBy, visiting) {
			return true
		}
		delete(visiting, implier)
	}
	return false
}

// parentEdge is one "relation from tupleset" hop: to decide relation on
// objType, also check relation on the object(s) reached via tupleset.
type parentEdge struct {
	objType  string
	relation string
}

func detectParentCycles(types []TypeDefinition) error {
	byType := make(map[string]TypeDefinition, len(types))
	for _, t := range types {
		byType[t.Name] = t
	}

	// subjectTypesOf reports which object types a tupleset relation can
	// point to, so a parent edge can be followed to the right type(s).
	subjectTypesOf := func(t TypeDefinition, tupleset string) []string {
		r, ok := t.Relation(tupleset)
		if !ok {
			return nil
		}
		var out []string
		for _, ref := range r.SubjectTypeRefs {
			out = append(out, ref.Type)
		}
		return out
	}

	for _, t := range types {
		for _, r := range t.Relations {
			start := parentEdge{t.Name, r.Name}
			path := []parentEdge{start}
			var walk func(cur parentEdge) bool
			walk = func(cur parentEdge) bool {
				curType, ok := byType[cur.objType]
				if !ok {
					return false
				}
				curRel, ok := curType.Relation(cur.relation)
				if !ok {
					return false
				}
				cyclic := false
				walkTupleToUserset(curRel.Rule, func(tupleset, relation string) {
					if cyclic {
						return
					}
					for _, parentType := range subjectTypesOf(curType, tupleset) {
						next := parentEdge{parentType, relation}

						if idx := indexOf(path, next); idx >= 0 {
							// Revisiting an edge already on the path: only a
							// real cycle if the loop portion touches more
							// than one distinct relation name. A loop that
							// only ever re-checks the same relation name on
							// alternating types is ordinary hierarchical
							// inheritance, bounded by actual object depth,
							// not a schema-level contradiction.
							if distinctRelations(path[idx:]) > 1 {
								cyclic = true
							}
							return
						}

						path = append(path, next)
						if walk(next) {
							cyclic = true
						}
						path = path[:len(path)-1]
						if cyclic {
							return
						}
					}
				})
				return cyclic
			}
			if walk(start) {
				return fmt.Errorf("%w: parent relation cycle reaching %s.%s", ErrCyclicSchema, t.Name, r.Name)
			}
		}
	}
	return nil
}

func indexOf(path []parentEdge, e parentEdge) int {
	for i, p := range path {
		if p == e {
			return i
		}
	}
	return -1
}

func distinctRelations(path []parentEdge) int {
	seen := make(map[string]bool, len(path))
	for _, p := range path {
		seen[p.relation] = true
	}
	return len(seen)
}

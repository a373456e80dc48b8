package schema

// ClosureEdge records that having SatisfyingRelation on an object of
// ObjectType also grants Relation, transitively. The Leopard index
// (cache/leopard) does not consume these edges: it is seeded lazily by the
// Evaluator during live graph walks.
type ClosureEdge struct {
	ObjectType         string
	Relation           string
	SatisfyingRelation string
}

// ComputeClosure computes, for every relation of every type, the full set
// of relations that transitively satisfy it via Computed (implied-by)
// edges. TupleToUserset and Intersection/Exclusion edges are not folded in:
// those cross object boundaries or require evaluating more than membership,
// so they stay in the engine's live rule walk.
func ComputeClosure(types []TypeDefinition) []ClosureEdge {
	var edges []ClosureEdge

	for _, t := range types {
		impliedBy := make(map[string][]string)
		for _, r := range t.Relations {
			walkComputed(r.Rule, func(implier string) {
				impliedBy[r.Name] = append(impliedBy[r.Name], implier)
			})
		}

		for _, r := range t.Relations {
			for satisfying := range transitiveSatisfiers(r.Name, impliedBy) {
				edges = append(edges, ClosureEdge{
					ObjectType:         t.Name,
					Relation:           r.Name,
					SatisfyingRelation: satisfying,
				})
			}
		}
	}

	return edges
}

// transitiveSatisfiers does a BFS over the implied-by graph starting at
// start, returning every relation (including start itself) that
// transitively grants it.
func transitiveSatisfiers(start string, impliedBy map[string][]string) map[string]bool {
	result := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, implier := range impliedBy[cur] {
			if !result[implier] {
				result[implier] = true
				queue = append(queue, implier)
			}
		}
	}
	return result
}

// Package schema holds the parsed authorization model: object types, their
// relations, and the userset-rewrite rule each relation evaluates against.
// Relations carry a Rule tree that the engine package walks directly in
// process, rather than a flattened table of rows meant for generated SQL.
package schema

import "fmt"

// RuleKind distinguishes the six userset-rewrite operators a relation can
// be defined in terms of.
type RuleKind int

const (
	// This refers to directly-assigned tuples on the relation itself:
	// "define viewer: [user, group#member]".
	This RuleKind = iota
	// Computed refers to another relation on the same object:
	// "define editor: [user] or owner" -> owner is Computed.
	Computed
	// TupleToUserset follows a tupleset relation to a parent/linked object
	// and evaluates a relation there: "define viewer: viewer from parent".
	TupleToUserset
	// Union is logical OR over Children.
	Union
	// Intersection is logical AND over Children.
	Intersection
	// Exclusion is Children[0] AND NOT Children[1] ("A but not B").
	Exclusion
)

func (k RuleKind) String() string {
	switch k {
	case This:
		return "this"
	case Computed:
		return "computed_userset"
	case TupleToUserset:
		return "tuple_to_userset"
	case Union:
		return "union"
	case Intersection:
		return "intersection"
	case Exclusion:
		return "exclusion"
	default:
		return "unknown"
	}
}

// Rule is one node of a relation's userset-rewrite tree, mirroring
// OpenFGA's Userset message shape as a proper tree so the engine can
// recurse on it directly instead of special-casing each shape.
type Rule struct {
	Kind RuleKind

	// Computed: the relation name being referred to, on the same object.
	Relation string

	// TupleToUserset: Tupleset is the relation that names the linked
	// object ("parent"); Relation is the relation evaluated on it
	// ("viewer").
	Tupleset string

	// Union, Intersection, Exclusion operands. Exclusion always has
	// exactly two: Children[0] minus Children[1].
	Children []Rule
}

// SubjectTypeRef is one allowed subject type for a This rule, e.g. "user"
// or "group#member" for userset references, or "user:*" for wildcards.
type SubjectTypeRef struct {
	Type     string
	Relation string // non-empty for userset references
	Wildcard bool
}

// RelationDefinition is one named relation on a type, with the rule tree
// that decides whether a subject satisfies it and, for This rules, which
// subject types may be granted it directly.
type RelationDefinition struct {
	Name            string
	Rule            Rule
	SubjectTypeRefs []SubjectTypeRef // only meaningful when Rule is, or contains, a This node
}

// TypeDefinition is a parsed object type: "repository", "folder", "team".
type TypeDefinition struct {
	Name      string
	Relations []RelationDefinition
}

// Relation looks up a relation definition by name, returning ok=false if
// the type has no such relation.
func (t TypeDefinition) Relation(name string) (RelationDefinition, bool) {
	for _, r := range t.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return RelationDefinition{}, false
}

// Model is a full parsed authorization model: every type definition plus
// the tenant/schema identity it was loaded under.
type Model struct {
	ID    string
	Types []TypeDefinition
}

// Type looks up a type definition by name.
func (m Model) Type(name string) (TypeDefinition, bool) {
	for _, t := range m.Types {
		if t.Name == name {
			return t, true
		}
	}
	return TypeDefinition{}, false
}

// SubjectTypes returns every subject type referenced anywhere in the model,
// useful for driving exhaustive schema validation and test fixtures.
func SubjectTypes(types []TypeDefinition) []string {
	seen := make(map[string]bool)
	var result []string
	for _, t := range types {
		for _, r := range t.Relations {
			for _, ref := range r.SubjectTypeRefs {
				if !seen[ref.Type] {
					seen[ref.Type] = true
					result = append(result, ref.Type)
				}
			}
		}
	}
	return result
}

// RelationSubjects returns the subject types directly assignable to
// (objectType, relation).
func RelationSubjects(types []TypeDefinition, objectType, relation string) []string {
	for _, t := range types {
		if t.Name != objectType {
			continue
		}
		r, ok := t.Relation(relation)
		if !ok {
			return nil
		}
		var result []string
		for _, ref := range r.SubjectTypeRefs {
			result = append(result, ref.Type)
		}
		return result
	}
	return nil
}

// walkComputed calls fn for every Computed-relation name directly reachable
// from rule without descending into nested TupleToUserset subtrees (those
// name a relation on a *different* object and are not part of this type's
// implied-by graph).
func walkComputed(rule Rule, fn func(relation string)) {
	switch rule.Kind {
	case Computed:
		fn(rule.Relation)
	case Union, Intersection, Exclusion:
		for _, c := range rule.Children {
			walkComputed(c, fn)
		}
	}
}

// walkTupleToUserset calls fn(tupleset, relation) for every
// TupleToUserset leaf directly reachable from rule.
func walkTupleToUserset(rule Rule, fn func(tupleset, relation string)) {
	switch rule.Kind {
	case TupleToUserset:
		fn(rule.Tupleset, rule.Relation)
	case Union, Intersection, Exclusion:
		for _, c := range rule.Children {
			walkTupleToUserset(c, fn)
		}
	}
}

func (k RuleKind) valid() bool { return k >= This && k <= Exclusion }

func validateRule(typeName, relationName string, r Rule) error {
	if !r.Kind.valid() {
		return fmt.Errorf("schema: %s.%s: invalid rule kind %d", typeName, relationName, r.Kind)
	}
	switch r.Kind {
	case Exclusion:
		if len(r.Children) != 2 {
			return fmt.Errorf("schema: %s.%s: exclusion must have exactly 2 children, got %d", typeName, relationName, len(r.Children))
		}
	case Union, Intersection:
		if len(r.Children) == 0 {
			return fmt.Errorf("schema: %s.%s: %s must have at least 1 child", typeName, relationName, r.Kind)
		}
	}
	for _, c := range r.Children {
		if err := validateRule(typeName, relationName, c); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks structural well-formedness of every rule tree (correct
// child counts, valid kinds) and then runs DetectCycles.
func Validate(types []TypeDefinition) error {
	for _, t := range types {
		for _, r := range t.Relations {
			if err := validateRule(t.Name, r.Name, r.Rule); err != nil {
				return err
			}
		}
	}
	return DetectCycles(types)
}

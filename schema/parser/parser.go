// Package parser wraps the official OpenFGA language parser to turn .fga
// DSL schemas (or OpenFGA protobuf AuthorizationModel messages) into
// schema.TypeDefinition/schema.Rule trees. It is the only package in this
// module that imports the OpenFGA proto/transformer packages, isolating
// that dependency from the runtime.
//
// This parser emits schema.Rule trees directly: Union, Intersection, and
// Exclusion nodes nest exactly as OpenFGA's Userset protobuf does, with no
// flattening into intermediate row-oriented representations.
package parser

import (
	"fmt"
	"os"
	"sort"

	openfgav1 "github.com/openfga/api/proto/openfga/v1"
	"github.com/openfga/language/pkg/go/transformer"

	"github.com/nexi-lab/nexus-sub005/schema"
)

// ErrInvalidSchema is returned when the DSL fails to parse.
var ErrInvalidSchema = fmt.Errorf("parser: invalid schema")

// ParseFile reads and parses an .fga schema file from disk.
func ParseFile(path string) (schema.Model, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return schema.Model{}, fmt.Errorf("parser: reading schema file: %w", err)
	}
	return ParseString(string(content))
}

// ParseString parses OpenFGA DSL text into a Model.
func ParseString(content string) (schema.Model, error) {
	model, err := transformer.TransformDSLToProto(content)
	if err != nil {
		return schema.Model{}, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return FromProto(model), nil
}

// FromProto converts an OpenFGA protobuf AuthorizationModel directly,
// useful when a model arrives over the wire (e.g. a WriteAuthorizationModel
// gRPC call) rather than as DSL text.
func FromProto(model *openfgav1.AuthorizationModel) schema.Model {
	typeDefs := model.GetTypeDefinitions()
	types := make([]schema.TypeDefinition, 0, len(typeDefs))

	for _, td := range typeDefs {
		typeDef := schema.TypeDefinition{Name: td.GetType()}

		directTypeRefs := directlyRelatedTypes(td)

		relMap := td.GetRelations()
		relNames := make([]string, 0, len(relMap))
		for relName := range relMap {
			relNames = append(relNames, relName)
		}
		sort.Strings(relNames)

		for _, relName := range relNames {
			typeDef.Relations = append(typeDef.Relations, schema.RelationDefinition{
				Name:            relName,
				Rule:            convertUserset(relMap[relName]),
				SubjectTypeRefs: directTypeRefs[relName],
			})
		}

		types = append(types, typeDef)
	}

	return schema.Model{ID: model.GetId(), Types: types}
}

func directlyRelatedTypes(td *openfgav1.TypeDefinition) map[string][]schema.SubjectTypeRef {
	out := make(map[string][]schema.SubjectTypeRef)
	meta := td.GetMetadata()
	if meta == nil {
		return out
	}

	relMetaMap := meta.GetRelations()
	relNames := make([]string, 0, len(relMetaMap))
	for relName := range relMetaMap {
		relNames = append(relNames, relName)
	}
	sort.Strings(relNames)

	for _, relName := range relNames {
		for _, t := range relMetaMap[relName].GetDirectlyRelatedUserTypes() {
			ref := schema.SubjectTypeRef{Type: t.GetType()}
			switch v := t.GetRelationOrWildcard().(type) {
			case *openfgav1.RelationReference_Wildcard:
				ref.Wildcard = true
			case *openfgav1.RelationReference_Relation:
				ref.Relation = v.Relation
			}
			out[relName] = append(out[relName], ref)
		}
	}
	return out
}

// convertUserset recursively converts a protobuf Userset into a schema.Rule
// tree. A nil Userset converts to an empty This node (grants nothing
// directly, matching a relation with no assignable subject types).
func convertUserset(us *openfgav1.Userset) schema.Rule {
	if us == nil {
		return schema.Rule{Kind: schema.This}
	}

	switch v := us.Userset.(type) {
	case *openfgav1.Userset_This:
		return schema.Rule{Kind: schema.This}

	case *openfgav1.Userset_ComputedUserset:
		return schema.Rule{Kind: schema.Computed, Relation: v.ComputedUserset.GetRelation()}

	case *openfgav1.Userset_TupleToUserset:
		return schema.Rule{
			Kind:     schema.TupleToUserset,
			Tupleset: v.TupleToUserset.GetTupleset().GetRelation(),
			Relation: v.TupleToUserset.GetComputedUserset().GetRelation(),
		}

	case *openfgav1.Userset_Union:
		children := make([]schema.Rule, 0, len(v.Union.GetChild()))
		for _, c := range v.Union.GetChild() {
			children = append(children, convertUserset(c))
		}
		return schema.Rule{Kind: schema.Union, Children: children}

	case *openfgav1.Userset_Intersection:
		children := make([]schema.Rule, 0, len(v.Intersection.GetChild()))
		for _, c := range v.Intersection.GetChild() {
			children = append(children, convertUserset(c))
		}
		return schema.Rule{Kind: schema.Intersection, Children: children}

	case *openfgav1.Userset_Difference:
		return schema.Rule{
			Kind: schema.Exclusion,
			Children: []schema.Rule{
				convertUserset(v.Difference.GetBase()),
				convertUserset(v.Difference.GetSubtract()),
			},
		}

	default:
		return schema.Rule{Kind: schema.This}
	}
}

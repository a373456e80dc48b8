package schema_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexi-lab/nexus-sub005/schema"
)

func computed(relations ...string) schema.Rule {
	if len(relations) == 1 {
		return schema.Rule{Kind: schema.Computed, Relation: relations[0]}
	}
	children := make([]schema.Rule, len(relations))
	for i, r := range relations {
		children[i] = schema.Rule{Kind: schema.Computed, Relation: r}
	}
	return schema.Rule{Kind: schema.Union, Children: children}
}

func ttu(tupleset, relation string) schema.Rule {
	return schema.Rule{Kind: schema.TupleToUserset, Tupleset: tupleset, Relation: relation}
}

func this(subjectTypes ...string) schema.Rule { return schema.Rule{Kind: schema.This} }

func TestDetectCycles_ImpliedBy(t *testing.T) {
	types := []schema.TypeDefinition{
		{
			Name: "resource",
			Relations: []schema.RelationDefinition{
				{Name: "admin", Rule: computed("owner")},
				{Name: "owner", Rule: computed("admin")}, // cycle
			},
		},
	}

	err := schema.DetectCycles(types)
	require.Error(t, err)
	assert.True(t, schema.IsCyclicSchemaErr(err))
	assert.Contains(t, err.Error(), "implied-by cycle")
	assert.Contains(t, err.Error(), "resource")
}

func TestDetectCycles_ImpliedByThreeWay(t *testing.T) {
	types := []schema.TypeDefinition{
		{
			Name: "resource",
			Relations: []schema.RelationDefinition{
				{Name: "a", Rule: computed("c")},
				{Name: "b", Rule: computed("a")},
				{Name: "c", Rule: computed("b")},
			},
		},
	}

	err := schema.DetectCycles(types)
	require.Error(t, err)
	assert.True(t, schema.IsCyclicSchemaErr(err))
}

func TestDetectCycles_SelfLoop(t *testing.T) {
	types := []schema.TypeDefinition{
		{
			Name: "resource",
			Relations: []schema.RelationDefinition{
				{Name: "admin", Rule: computed("admin")},
			},
		},
	}

	err := schema.DetectCycles(types)
	require.Error(t, err)
	assert.True(t, schema.IsCyclicSchemaErr(err))
}

func TestDetectCycles_MultipleImpliers(t *testing.T) {
	types := []schema.TypeDefinition{
		{
			Name: "resource",
			Relations: []schema.RelationDefinition{
				{Name: "owner", Rule: this("user")},
				{Name: "admin", Rule: this("user")},
				{Name: "viewer", Rule: computed("owner", "admin")}, // diamond, not a cycle
			},
		},
	}

	require.NoError(t, schema.DetectCycles(types))
}

func TestDetectCycles_Parent_SameRelationIsNotACycle(t *testing.T) {
	types := []schema.TypeDefinition{
		{
			Name: "organization",
			Relations: []schema.RelationDefinition{
				{Name: "repo", Rule: this("repository"), SubjectTypeRefs: []schema.SubjectTypeRef{{Type: "repository"}}},
				{Name: "can_read", Rule: ttu("repo", "can_read")},
			},
		},
		{
			Name: "repository",
			Relations: []schema.RelationDefinition{
				{Name: "org", Rule: this("organization"), SubjectTypeRefs: []schema.SubjectTypeRef{{Type: "organization"}}},
				{Name: "can_read", Rule: ttu("org", "can_read")},
			},
		},
	}

	err := schema.DetectCycles(types)
	assert.NoError(t, err, "same-relation parent recursion across types is ordinary hierarchical inheritance")
}

func TestDetectCycles_ParentDifferentRelationsIsACycle(t *testing.T) {
	types := []schema.TypeDefinition{
		{
			Name: "organization",
			Relations: []schema.RelationDefinition{
				{Name: "repo", Rule: this("repository"), SubjectTypeRefs: []schema.SubjectTypeRef{{Type: "repository"}}},
				{Name: "can_read", Rule: ttu("repo", "can_write")},
			},
		},
		{
			Name: "repository",
			Relations: []schema.RelationDefinition{
				{Name: "org", Rule: this("organization"), SubjectTypeRefs: []schema.SubjectTypeRef{{Type: "organization"}}},
				{Name: "can_write", Rule: ttu("org", "can_read")},
			},
		},
	}

	err := schema.DetectCycles(types)
	require.Error(t, err)
	assert.True(t, schema.IsCyclicSchemaErr(err))
	assert.True(t, strings.Contains(err.Error(), "parent") && strings.Contains(err.Error(), "cycle"))
}

func TestDetectCycles_ValidDAG(t *testing.T) {
	types := []schema.TypeDefinition{
		{
			Name: "resource",
			Relations: []schema.RelationDefinition{
				{Name: "owner", Rule: this("user")},
				{Name: "admin", Rule: computed("owner")},
				{Name: "member", Rule: computed("admin")},
				{Name: "viewer", Rule: computed("member")},
			},
		},
	}

	assert.NoError(t, schema.DetectCycles(types))
}

func TestDetectCycles_EmptySchema(t *testing.T) {
	assert.NoError(t, schema.DetectCycles(nil))
}

func TestDetectCycles_TypeWithNoRelations(t *testing.T) {
	types := []schema.TypeDefinition{{Name: "user"}, {Name: "team"}}
	assert.NoError(t, schema.DetectCycles(types))
}

func TestIsCyclicSchemaErr(t *testing.T) {
	t.Run("unrelated error", func(t *testing.T) {
		err := errors.New("wrapped")
		assert.False(t, schema.IsCyclicSchemaErr(err))
	})
	t.Run("nil error", func(t *testing.T) {
		assert.False(t, schema.IsCyclicSchemaErr(nil))
	})
}

func TestDetectCycles_ComplexValidSchema(t *testing.T) {
	types := []schema.TypeDefinition{
		{Name: "user"},
		{
			Name: "organization",
			Relations: []schema.RelationDefinition{
				{Name: "owner", Rule: this("user")},
				{Name: "admin", Rule: computed("owner")},
				{Name: "member", Rule: computed("admin")},
				{Name: "can_read", Rule: computed("member")},
				{Name: "can_write", Rule: computed("admin")},
				{Name: "can_delete", Rule: computed("owner")},
			},
		},
		{
			Name: "repository",
			Relations: []schema.RelationDefinition{
				{Name: "org", Rule: this("organization"), SubjectTypeRefs: []schema.SubjectTypeRef{{Type: "organization"}}},
				{Name: "owner", Rule: this("user")},
				{Name: "collaborator", Rule: this("user")},
				{Name: "can_read", Rule: schema.Rule{Kind: schema.Union, Children: []schema.Rule{
					ttu("org", "can_read"), computed("collaborator"), computed("owner"),
				}}},
				{Name: "can_write", Rule: schema.Rule{Kind: schema.Union, Children: []schema.Rule{
					ttu("org", "can_write"), computed("owner"),
				}}},
			},
		},
		{
			Name: "issue",
			Relations: []schema.RelationDefinition{
				{Name: "repo", Rule: this("repository"), SubjectTypeRefs: []schema.SubjectTypeRef{{Type: "repository"}}},
				{Name: "author", Rule: this("user")},
				{Name: "can_read", Rule: ttu("repo", "can_read")},
				{Name: "can_write", Rule: schema.Rule{Kind: schema.Union, Children: []schema.Rule{
					ttu("repo", "can_write"), computed("author"),
				}}},
			},
		},
	}

	assert.NoError(t, schema.DetectCycles(types))
}

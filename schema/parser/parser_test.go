package parser_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexi-lab/nexus-sub005/schema"
	"github.com/nexi-lab/nexus-sub005/schema/parser"
)

const testDSL = `model
  schema 1.1

type user

type group
  relations
    define member: [user]

type folder
  relations
    define parent: [folder]
    define viewer: [user]
    define editor: [user, group#member]
    define read: viewer or editor or read from parent
`

func TestParseString_BuildsRuleTree(t *testing.T) {
	m, err := parser.ParseString(testDSL)
	require.NoError(t, err)

	folder, ok := m.Type("folder")
	require.True(t, ok)

	read, ok := folder.Relation("read")
	require.True(t, ok)
	assert.Equal(t, schema.Union, read.Rule.Kind)
	require.Len(t, read.Rule.Children, 3)

	kinds := make([]schema.RuleKind, len(read.Rule.Children))
	for i, c := range read.Rule.Children {
		kinds[i] = c.Kind
	}
	assert.Contains(t, kinds, schema.Computed)
	assert.Contains(t, kinds, schema.TupleToUserset)
}

func TestParseString_CapturesSubjectTypeRefs(t *testing.T) {
	m, err := parser.ParseString(testDSL)
	require.NoError(t, err)

	folder, ok := m.Type("folder")
	require.True(t, ok)
	editor, ok := folder.Relation("editor")
	require.True(t, ok)

	types := make([]string, 0, len(editor.SubjectTypeRefs))
	for _, ref := range editor.SubjectTypeRefs {
		types = append(types, ref.Type)
	}
	assert.Contains(t, types, "user")
	assert.Contains(t, types, "group")
}

func TestParseString_InvalidDSLReturnsErrInvalidSchema(t *testing.T) {
	_, err := parser.ParseString("not a valid schema at all")
	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrInvalidSchema)
}

func TestParseFile_ReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.fga")
	require.NoError(t, os.WriteFile(path, []byte(testDSL), 0o644))

	m, err := parser.ParseFile(path)
	require.NoError(t, err)
	_, ok := m.Type("folder")
	assert.True(t, ok)
}

func TestParseFile_MissingFile(t *testing.T) {
	_, err := parser.ParseFile(filepath.Join(t.TempDir(), "missing.fga"))
	assert.Error(t, err)
}

func TestParsedModel_PassesValidate(t *testing.T) {
	m, err := parser.ParseString(testDSL)
	require.NoError(t, err)
	assert.NoError(t, schema.Validate(m.Types))
}

package schemareg_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexi-lab/nexus-sub005/internal/schemareg"
)

const validDSL = `model
  schema 1.1

type user

type folder
  relations
    define viewer: [user]
`

const validDSLv2 = `model
  schema 1.1

type user

type folder
  relations
    define viewer: [user]
    define editor: [user]
`

func writeSchema(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.fga")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ParsesAndValidates(t *testing.T) {
	path := writeSchema(t, validDSL)
	reg, err := schemareg.Load(path)
	require.NoError(t, err)

	m, err := reg.Model(context.Background(), "any-tenant")
	require.NoError(t, err)
	_, ok := m.Type("folder")
	assert.True(t, ok)
}

func TestLoad_RejectsInvalidSchema(t *testing.T) {
	path := writeSchema(t, "not a valid schema")
	_, err := schemareg.Load(path)
	assert.Error(t, err)
}

func TestModel_SameForEveryTenant(t *testing.T) {
	path := writeSchema(t, validDSL)
	reg, err := schemareg.Load(path)
	require.NoError(t, err)

	m1, err := reg.Model(context.Background(), "t1")
	require.NoError(t, err)
	m2, err := reg.Model(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, m1, m2)
}

func TestReload_PicksUpChanges(t *testing.T) {
	path := writeSchema(t, validDSL)
	reg, err := schemareg.Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(validDSLv2), 0o644))
	require.NoError(t, reg.Reload())

	m, err := reg.Model(context.Background(), "t1")
	require.NoError(t, err)
	folder, ok := m.Type("folder")
	require.True(t, ok)
	_, ok = folder.Relation("editor")
	assert.True(t, ok, "reload should pick up the new editor relation")
}

func TestReload_KeepsOldModelOnParseFailure(t *testing.T) {
	path := writeSchema(t, validDSL)
	reg, err := schemareg.Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("broken schema"), 0o644))
	err = reg.Reload()
	assert.Error(t, err)

	m, err := reg.Model(context.Background(), "t1")
	require.NoError(t, err)
	_, ok := m.Type("folder")
	assert.True(t, ok, "a failed reload must not discard the previously loaded model")
}

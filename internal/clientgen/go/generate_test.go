package gogen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexi-lab/nexus-sub005/internal/clientgen"
	gogen "github.com/nexi-lab/nexus-sub005/internal/clientgen/go"
	"github.com/nexi-lab/nexus-sub005/schema"
)

func testTypes() []schema.TypeDefinition {
	return []schema.TypeDefinition{
		{
			Name: "user",
			Relations: []schema.RelationDefinition{
				{Name: "self", Rule: schema.Rule{Kind: schema.This}},
			},
		},
		{
			Name: "repository",
			Relations: []schema.RelationDefinition{
				{Name: "owner", Rule: schema.Rule{Kind: schema.This}},
				{Name: "can_read", Rule: schema.Rule{Kind: schema.Computed, Relation: "owner"}},
			},
		},
	}
}

func TestGenerator_Interface(t *testing.T) {
	gen := &gogen.Generator{}
	require.Equal(t, "go", gen.Name())

	cfg := gen.DefaultConfig()
	require.Equal(t, "authz", cfg.Package)
	require.Equal(t, "string", cfg.IDType)
	require.Empty(t, cfg.RelationFilter)
}

func TestGenerator_Generate(t *testing.T) {
	gen := &gogen.Generator{}
	types := testTypes()

	t.Run("returns single file map", func(t *testing.T) {
		files, err := gen.Generate(types, nil)
		require.NoError(t, err)
		require.Len(t, files, 1)
		require.Contains(t, files, "schema_gen.go")
	})

	t.Run("default config uses string ID", func(t *testing.T) {
		files, err := gen.Generate(types, nil)
		require.NoError(t, err)
		code := string(files["schema_gen.go"])
		require.Contains(t, code, "func User(id string)")
		require.NotContains(t, code, `"fmt"`)
	})

	t.Run("empty IDType defaults to string", func(t *testing.T) {
		cfg := &clientgen.Config{Package: "authz", IDType: ""}
		files, err := gen.Generate(types, cfg)
		require.NoError(t, err)
		require.Contains(t, string(files["schema_gen.go"]), "func User(id string)")
	})

	t.Run("int64 IDType uses fmt.Sprint", func(t *testing.T) {
		cfg := &clientgen.Config{Package: "authz", IDType: "int64"}
		files, err := gen.Generate(types, cfg)
		require.NoError(t, err)
		code := string(files["schema_gen.go"])
		require.Contains(t, code, "func User(id int64)")
		require.Contains(t, code, `"fmt"`)
		require.Contains(t, code, "fmt.Sprint(id)")
	})

	t.Run("generates all relations by default", func(t *testing.T) {
		files, err := gen.Generate(types, &clientgen.Config{Package: "authz"})
		require.NoError(t, err)
		code := string(files["schema_gen.go"])
		require.Contains(t, code, "RelRepositoryOwner")
		require.Contains(t, code, "RelRepositoryCanRead")
		require.Contains(t, code, "RelUserSelf")
	})

	t.Run("prefix filter limits relations", func(t *testing.T) {
		cfg := &clientgen.Config{Package: "authz", RelationFilter: "can_"}
		files, err := gen.Generate(types, cfg)
		require.NoError(t, err)
		code := string(files["schema_gen.go"])
		require.Contains(t, code, "RelRepositoryCanRead")
		require.NotContains(t, code, "RelRepositoryOwner")
		require.NotContains(t, code, "RelUserSelf")
	})

	t.Run("generates wildcard constructors", func(t *testing.T) {
		files, err := gen.Generate(types, nil)
		require.NoError(t, err)
		code := string(files["schema_gen.go"])
		require.Contains(t, code, "func AnyUser()")
		require.Contains(t, code, "func AnyRepository()")
		require.Contains(t, code, `ID: "*"`)
	})

	t.Run("uses the store package's ObjectRef", func(t *testing.T) {
		files, err := gen.Generate(types, nil)
		require.NoError(t, err)
		code := string(files["schema_gen.go"])
		require.True(t, strings.Contains(code, "github.com/nexi-lab/nexus-sub005/store"))
	})
}

func TestRegistry_GoGeneratorRegistered(t *testing.T) {
	gen := clientgen.Get("go")
	require.NotNil(t, gen)
	require.Equal(t, "go", gen.Name())
}

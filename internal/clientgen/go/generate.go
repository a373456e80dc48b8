// Package gogen implements the "go" client code generator: relation name
// constants and typed store.ObjectRef/SubjectRef constructors for an
// authorization schema, so application code names types, relations, and
// wildcard subjects by Go identifier instead of by string literal.
package gogen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nexi-lab/nexus-sub005/internal/clientgen"
	"github.com/nexi-lab/nexus-sub005/schema"
)

func init() {
	clientgen.Register(&Generator{})
}

// Generator implements clientgen.Generator for Go.
type Generator struct{}

// Name returns "go" as the runtime identifier.
func (g *Generator) Name() string { return "go" }

// DefaultConfig returns default configuration for Go code generation:
// package "authz", no relation filter, string-typed object IDs.
func (g *Generator) DefaultConfig() *clientgen.Config {
	return &clientgen.Config{
		Package:        "authz",
		RelationFilter: "",
		IDType:         "string",
		Options:        make(map[string]any),
	}
}

// Generate produces a single schema_gen.go file declaring one RelXxx
// constant per relation (filtered by cfg.RelationFilter's prefix, if
// set), one constructor and one wildcard ("Any"+TypeName) constructor per
// type, all returning store.ObjectRef/store.SubjectRef literals.
func (g *Generator) Generate(types []schema.TypeDefinition, cfg *clientgen.Config) (map[string][]byte, error) {
	if cfg == nil {
		cfg = g.DefaultConfig()
	}
	pkg := cfg.Package
	if pkg == "" {
		pkg = "authz"
	}
	idType := cfg.IDType
	if idType == "" {
		idType = "string"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by nexus generate client --runtime go. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", pkg)

	imports := []string{`"github.com/nexi-lab/nexus-sub005/store"`}
	if idType != "string" {
		imports = append(imports, `"fmt"`)
	}
	sort.Strings(imports)
	fmt.Fprintf(&b, "import (\n")
	for _, imp := range imports {
		fmt.Fprintf(&b, "\t%s\n", imp)
	}
	fmt.Fprintf(&b, ")\n\n")

	idExpr := "id"
	if idType != "string" {
		idExpr = "fmt.Sprint(id)"
	}

	fmt.Fprintf(&b, "// Relation name constants.\n")
	for _, t := range types {
		for _, r := range t.Relations {
			if cfg.RelationFilter != "" && !strings.HasPrefix(r.Name, cfg.RelationFilter) {
				continue
			}
			fmt.Fprintf(&b, "const Rel%s%s = %q\n", exportName(t.Name), exportName(r.Name), r.Name)
		}
	}
	fmt.Fprintf(&b, "\n")

	for _, t := range types {
		name := exportName(t.Name)
		fmt.Fprintf(&b, "// %s builds an ObjectRef for a %s by ID.\n", name, t.Name)
		fmt.Fprintf(&b, "func %s(id %s) store.ObjectRef {\n", name, idType)
		fmt.Fprintf(&b, "\treturn store.ObjectRef{Type: %q, ID: %s}\n", t.Name, idExpr)
		fmt.Fprintf(&b, "}\n\n")

		fmt.Fprintf(&b, "// Any%s builds the wildcard ObjectRef for %s ([%s]-style subject refs).\n", name, t.Name, t.Name)
		fmt.Fprintf(&b, "func Any%s() store.ObjectRef {\n", name)
		fmt.Fprintf(&b, "\treturn store.ObjectRef{Type: %q, ID: \"*\"}\n", t.Name)
		fmt.Fprintf(&b, "}\n\n")
	}

	return map[string][]byte{"schema_gen.go": []byte(b.String())}, nil
}

// exportName converts a snake_case schema identifier to an exported Go
// identifier: "can_read" -> "CanRead".
func exportName(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

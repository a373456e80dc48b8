package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nexi-lab/nexus-sub005/internal/cli"
	"github.com/nexi-lab/nexus-sub005/pkg/clientgen"
	"github.com/nexi-lab/nexus-sub005/schema/parser"
)

var (
	genClientRuntime string
	genClientSchema  string
	genClientOutput  string
	genClientPackage string
	genClientFilter  string
	genClientIDType  string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Code generation utilities",
}

var generateClientCmd = &cobra.Command{
	Use:   "client",
	Short: "Generate type-safe client code from a schema",
	Long: `Generate relation constants and typed store.ObjectRef constructors from an
authorization schema.

Supported runtimes: ` + strings.Join(clientgen.ListRuntimes(), ", "),
	Example: `  # Generate Go code to a directory
  nexus generate client --runtime go --schema schemas/schema.fga --output internal/authz/

  # Generate only permission relations (can_*)
  nexus generate client --runtime go --schema schemas/schema.fga --filter can_

  # Output to stdout
  nexus generate client --runtime go --schema schemas/schema.fga`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runtime := resolveString(genClientRuntime, "go")
		schemaPath := resolveString(genClientSchema, cfg.Schema)
		pkg := resolveString(genClientPackage, "authz")
		idType := resolveString(genClientIDType, "string")

		if schemaPath == "" {
			return cli.ConfigError("--schema is required", nil)
		}
		if !clientgen.Registered(runtime) {
			return cli.ConfigError(
				fmt.Sprintf("unknown runtime %q", runtime),
				fmt.Errorf("supported runtimes: %s", strings.Join(clientgen.ListRuntimes(), ", ")),
			)
		}

		if _, err := os.Stat(schemaPath); err != nil {
			return cli.SchemaParseError(fmt.Sprintf("schema not found: %s", schemaPath), nil)
		}
		m, err := parser.ParseFile(schemaPath)
		if err != nil {
			return cli.SchemaParseError("parsing schema", err)
		}

		genCfg := &clientgen.Config{
			Package:        pkg,
			RelationFilter: genClientFilter,
			IDType:         idType,
		}
		files, err := clientgen.Generate(runtime, m.Types, genCfg)
		if err != nil {
			return cli.GeneralError("generation failed", err)
		}

		return writeGenerated(files, genClientOutput)
	},
}

func writeGenerated(files map[string][]byte, output string) error {
	if output == "" {
		if len(files) > 1 {
			return cli.ConfigError("--output is required for multi-file generation", nil)
		}
		for _, content := range files {
			if _, err := os.Stdout.Write(content); err != nil {
				return cli.GeneralError("writing to stdout", err)
			}
		}
		return nil
	}

	if err := os.MkdirAll(output, 0o755); err != nil {
		return cli.GeneralError("creating output directory", err)
	}
	for filename, content := range files {
		outPath := filepath.Join(output, filename)
		if err := os.WriteFile(outPath, content, 0o644); err != nil {
			return cli.GeneralError(fmt.Sprintf("writing %s", outPath), err)
		}
		if !quiet {
			fmt.Printf("wrote %s\n", outPath)
		}
	}
	return nil
}

func init() {
	f := generateClientCmd.Flags()
	f.StringVar(&genClientRuntime, "runtime", "go", "target runtime: "+strings.Join(clientgen.ListRuntimes(), ", "))
	f.StringVar(&genClientSchema, "schema", "", "path to schema.fga file")
	f.StringVar(&genClientOutput, "output", "", "output directory (default: stdout)")
	f.StringVar(&genClientPackage, "package", "authz", "generated package/module name")
	f.StringVar(&genClientFilter, "filter", "", "only generate relations with this name prefix")
	f.StringVar(&genClientIDType, "id-type", "string", "object ID type for constructors (go runtime)")

	generateCmd.AddCommand(generateClientCmd)
}

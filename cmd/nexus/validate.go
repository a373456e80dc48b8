package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nexi-lab/nexus-sub005/internal/cli"
	"github.com/nexi-lab/nexus-sub005/schema"
	"github.com/nexi-lab/nexus-sub005/schema/parser"
)

var validateSchema string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate schema syntax and structure",
	Long:  `Parse a schema.fga file, translate it into the rule-tree model, and check it for structural errors and cycles.`,
	Example: `  # Validate a specific schema file
  nexus validate --schema schemas/schema.fga

  # Validate using config file settings
  nexus validate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaPath := resolveString(validateSchema, cfg.Schema)

		if _, err := os.Stat(schemaPath); err != nil {
			return cli.SchemaParseError(fmt.Sprintf("schema not found: %s", schemaPath), nil)
		}

		m, err := parser.ParseFile(schemaPath)
		if err != nil {
			return cli.SchemaParseError("parsing schema", err)
		}

		if err := schema.Validate(m.Types); err != nil {
			return cli.SchemaParseError("schema is structurally invalid", err)
		}

		if !quiet {
			relCount := 0
			for _, t := range m.Types {
				relCount += len(t.Relations)
			}
			fmt.Printf("Schema is valid. Found %d types, %d relations:\n", len(m.Types), relCount)
			for _, t := range m.Types {
				fmt.Printf("  - %s (%d relations)\n", t.Name, len(t.Relations))
			}
		}

		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateSchema, "schema", "", "path to schema.fga file")
}

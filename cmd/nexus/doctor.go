package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/nexi-lab/nexus-sub005/internal/cli"
	"github.com/nexi-lab/nexus-sub005/internal/doctor"
	"github.com/nexi-lab/nexus-sub005/store/postgres"
)

var (
	doctorDB      string
	doctorSchema  string
	doctorVerbose bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on the authorization infrastructure",
	Example: `  # Run health checks
  nexus doctor --db postgres://localhost/nexus --tenant acme

  # Run with verbose output
  nexus doctor --db postgres://localhost/nexus --tenant acme --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaPath := resolveString(doctorSchema, cfg.Schema)
		dsn, err := resolveDSN(doctorDB)
		if err != nil {
			return err
		}
		return runDoctor(cmd.Context(), dsn, schemaPath, tenant, doctorVerbose || verbose > 0)
	},
}

func init() {
	f := doctorCmd.Flags()
	f.StringVar(&doctorDB, "db", "", "database URL")
	f.StringVar(&doctorSchema, "schema", "", "path to schema.fga file")
	f.BoolVar(&doctorVerbose, "verbose", false, "show detailed output")
}

func runDoctor(ctx context.Context, dsn, schemaPath, tenantID string, verboseOut bool) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return cli.DBConnectError("connecting to database", err)
	}
	defer pool.Close()

	store := postgres.New(pool)

	if !quiet {
		fmt.Println("nexus doctor - Health Check")
	}

	d := doctor.New(store, schemaPath, tenantID)
	report, err := d.Run(ctx)
	if err != nil {
		return cli.GeneralError("running doctor", err)
	}

	report.Print(os.Stdout, verboseOut)

	if report.HasErrors() {
		return cli.GeneralError("health checks failed", nil)
	}
	return nil
}

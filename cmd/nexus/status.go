package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/nexi-lab/nexus-sub005/internal/cli"
	"github.com/nexi-lab/nexus-sub005/store/postgres"
)

var statusDB string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store and change-log status for a tenant",
	Example: `  # Check status
  nexus status --db postgres://localhost/nexus --tenant acme`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := resolveDSN(statusDB)
		if err != nil {
			return err
		}
		return runStatus(cmd.Context(), dsn, tenant)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusDB, "db", "", "database URL")
}

func runStatus(ctx context.Context, dsn, tenantID string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return cli.DBConnectError("connecting to database", err)
	}
	defer pool.Close()

	store := postgres.New(pool)

	seq, err := store.CurrentSeq(ctx, tenantID)
	if err != nil {
		return cli.GeneralError("getting status", err)
	}

	fmt.Printf("Tenant:          %s\n", tenantID)
	fmt.Printf("Change-log seq:  %d\n", seq)
	if seq == 0 {
		fmt.Println("\nNo tuples written yet for this tenant.")
	}
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/nexi-lab/nexus-sub005/internal/cli"
	"github.com/nexi-lab/nexus-sub005/store/postgres"
)

var migrateDB string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the tuple store schema to the database",
	Long:  `Create the rebac_tuples, rebac_changelog, and interner_symbols tables if they do not already exist.`,
	Example: `  # Apply the store schema
  nexus migrate --db postgres://localhost/nexus`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := resolveDSN(migrateDB)
		if err != nil {
			return err
		}
		return runMigrate(cmd.Context(), dsn)
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDB, "db", "", "database URL")
}

func runMigrate(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return cli.DBConnectError("connecting to database", err)
	}
	defer pool.Close()

	store := postgres.New(pool)

	if !quiet {
		fmt.Println("Applying tuple store schema...")
	}

	if err := store.Bootstrap(ctx); err != nil {
		return cli.GeneralError("applying store schema", err)
	}

	if !quiet {
		fmt.Println("Store schema applied successfully.")
	}
	return nil
}

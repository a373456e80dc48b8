package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/nexi-lab/nexus-sub005/cache/crosstenant"
	"github.com/nexi-lab/nexus-sub005/cache/final"
	"github.com/nexi-lab/nexus-sub005/cache/leopard"
	"github.com/nexi-lab/nexus-sub005/cache/subproblem"
	"github.com/nexi-lab/nexus-sub005/cache/tiger"
	"github.com/nexi-lab/nexus-sub005/cache/visibility"
	"github.com/nexi-lab/nexus-sub005/engine"
	"github.com/nexi-lab/nexus-sub005/internal/cli"
	"github.com/nexi-lab/nexus-sub005/internal/schemareg"
	"github.com/nexi-lab/nexus-sub005/internal/telemetry"
	"github.com/nexi-lab/nexus-sub005/invalidate"
	nexusgrpc "github.com/nexi-lab/nexus-sub005/server/grpc"
	"github.com/nexi-lab/nexus-sub005/store"
	"github.com/nexi-lab/nexus-sub005/store/postgres"
)

var (
	serveDB     string
	serveAddr   string
	serveSchema string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the authorization gRPC server",
	Long:  `Start the gRPC server, the per-tenant change-log invalidator, and the cache hierarchy.`,
	Example: `  # Run the server
  nexus serve --db postgres://localhost/nexus --addr :8443 --tenant acme`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := resolveDSN(serveDB)
		if err != nil {
			return err
		}
		addr := resolveString(serveAddr, cfg.Server.Addr)
		if addr == "" {
			addr = ":8443"
		}
		schemaPath := resolveString(serveSchema, cfg.Schema)
		return runServe(cmd.Context(), dsn, addr, schemaPath, tenant)
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveDB, "db", "", "database URL")
	f.StringVar(&serveAddr, "addr", "", "listen address")
	f.StringVar(&serveSchema, "schema", "", "path to schema.fga file")
}

func runServe(ctx context.Context, dsn, addr, schemaPath, tenantID string) error {
	log := telemetry.Default("serve")

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return cli.DBConnectError("connecting to database", err)
	}
	defer pool.Close()

	pgStore := postgres.New(pool)

	registry, err := schemareg.Load(schemaPath)
	if err != nil {
		return cli.SchemaParseError("loading schema", err)
	}

	caches := buildCaches()

	checkerOpts := []engine.Option{
		engine.WithSubproblemCache(caches.Subproblem),
		engine.WithCrossTenantIndex(caches.CrossTenant),
		engine.WithTigerCache(caches.Tiger),
		engine.WithVisibilityCache(caches.Visibility),
		engine.WithFinalCache(caches.Final),
		engine.WithQuantum(cfg.Cache.Quantum()),
	}
	if caches.Leopard != nil {
		checkerOpts = append(checkerOpts, engine.WithLeopardIndex(caches.Leopard))
	}

	checker := engine.NewChecker(pgStore, registry, checkerOpts...)

	watcher := invalidate.NewWatcher(pgStore, tenantID, caches,
		invalidate.WithPollInterval(cfg.Cache.ChangelogPoll()),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go watcher.Run(ctx)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return cli.GeneralError(fmt.Sprintf("listening on %s", addr), err)
	}

	grpcServer := nexusgrpc.NewGRPCServer(checker, pgStore)

	log.Infof("listening on %s (tenant=%s)", addr, tenantID)
	go func() {
		<-ctx.Done()
		log.Infof("shutting down")
		grpcServer.GracefulStop()
	}()

	if err := grpcServer.Serve(lis); err != nil {
		return cli.GeneralError("serving gRPC", err)
	}
	return nil
}

// buildCaches wires the six cache packages using the tunables cfg.Cache
// exposes.
func buildCaches() invalidate.Caches {
	caches := invalidate.Caches{
		Subproblem:  subproblem.New(cfg.Cache.SubproblemTTLs()),
		CrossTenant: crosstenant.New(),
		Tiger:       tiger.New(),
		Visibility:  visibility.New(),
		Final:       final.New(),
	}
	if cfg.Cache.LeopardEnabled {
		caches.Leopard = leopard.New()
	}
	return caches
}

var _ store.Store = (*postgres.Store)(nil)

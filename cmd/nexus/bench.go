package main

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/nexi-lab/nexus-sub005/engine"
	"github.com/nexi-lab/nexus-sub005/internal/cli"
	"github.com/nexi-lab/nexus-sub005/internal/schemareg"
	"github.com/nexi-lab/nexus-sub005/store"
	"github.com/nexi-lab/nexus-sub005/store/postgres"
)

var (
	benchDB       string
	benchSchema   string
	benchDuration time.Duration
	benchWorkers  int
	benchObject   string
	benchRelation string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Hammer Checker.Check in a loop and report throughput/latency",
	Long:  `Issue repeated Check calls against live tuples for benchDuration, exercising the cache hierarchy the way a sustained request load would, and report requests/sec and latency percentiles.`,
	Example: `  # Run a 10s benchmark against one object
  nexus bench --db postgres://localhost/nexus --tenant acme --object document:readme --relation viewer`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := resolveDSN(benchDB)
		if err != nil {
			return err
		}
		schemaPath := resolveString(benchSchema, cfg.Schema)
		if benchObject == "" || benchRelation == "" {
			return cli.ConfigError("bench requires --object and --relation", nil)
		}
		return runBench(cmd.Context(), dsn, schemaPath, tenant)
	},
}

func init() {
	f := benchCmd.Flags()
	f.StringVar(&benchDB, "db", "", "database URL")
	f.StringVar(&benchSchema, "schema", "", "path to schema.fga file")
	f.DurationVar(&benchDuration, "duration", 10*time.Second, "how long to run")
	f.IntVar(&benchWorkers, "workers", 16, "concurrent goroutines issuing checks")
	f.StringVar(&benchObject, "object", "", "object ref, e.g. document:readme")
	f.StringVar(&benchRelation, "relation", "", "relation to check")
}

func runBench(ctx context.Context, dsn, schemaPath, tenantID string) error {
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

	checker := engine.NewChecker(pgStore, registry)

	objType, objID, ok := strings.Cut(benchObject, ":")
	if !ok || objType == "" || objID == "" {
		return cli.ConfigError("parsing --object, expected type:id", nil)
	}
	object := store.ObjectRef{Type: objType, ID: objID}

	subjects, err := checker.Expand(ctx, tenantID, object, benchRelation)
	if err != nil {
		return cli.GeneralError("resolving subjects to benchmark against", err)
	}
	if len(subjects) == 0 {
		return cli.GeneralError("no subjects satisfy the given object/relation to bench against", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, benchDuration)
	defer cancel()

	var total, allowed int64
	var latencies []time.Duration
	var latMu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < benchWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				p := subjects[rng.Intn(len(subjects))]
				start := time.Now()
				d, err := checker.Check(ctx, tenantID, object, benchRelation, p, engine.Consistency{Mode: engine.Eventual})
				elapsed := time.Since(start)

				atomic.AddInt64(&total, 1)
				if err == nil && d.Allowed {
					atomic.AddInt64(&allowed, 1)
				}

				latMu.Lock()
				latencies = append(latencies, elapsed)
				latMu.Unlock()
			}
		}(int64(i) + 1)
	}
	wg.Wait()

	printBenchReport(total, allowed, latencies, benchDuration)
	return nil
}

func printBenchReport(total, allowed int64, latencies []time.Duration, duration time.Duration) {
	fmt.Printf("requests: %d (%d allowed) in %s\n", total, allowed, duration)
	if total == 0 {
		return
	}
	fmt.Printf("throughput: %.0f req/s\n", float64(total)/duration.Seconds())

	sorted := append([]time.Duration(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	pct := func(p float64) time.Duration {
		idx := int(float64(len(sorted)) * p)
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}
	fmt.Printf("latency p50=%s p95=%s p99=%s\n", pct(0.50), pct(0.95), pct(0.99))
}

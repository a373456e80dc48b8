package main

import (
	"github.com/spf13/cobra"

	"github.com/nexi-lab/nexus-sub005/internal/cli"
	"github.com/nexi-lab/nexus-sub005/internal/cliconfig"
)

var (
	// Global state set during PersistentPreRunE.
	cfg        *cliconfig.Config
	configPath string

	// Persistent flags.
	cfgFile string
	verbose int
	quiet   bool
	tenant  string
)

var rootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "Relationship-based authorization engine",
	Long: `nexus - Relationship-based (Zanzibar-style) authorization engine

nexus evaluates fine-grained permission checks over relation tuples using a
layered cache hierarchy, and serves them over gRPC for low-latency,
high-throughput authorization decisions.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" || cmd.Name() == "license" {
			return nil
		}

		var err error
		cfg, configPath, err = cliconfig.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}

		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

const (
	groupOperate = "operate"
	groupUtility = "utility"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: auto-discover nexus.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase verbosity (can be repeated)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&tenant, "tenant", "default", "tenant to operate against")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupOperate, Title: "Operate:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	migrateCmd.GroupID = groupOperate
	statusCmd.GroupID = groupOperate
	doctorCmd.GroupID = groupOperate
	validateCmd.GroupID = groupOperate
	serveCmd.GroupID = groupOperate
	benchCmd.GroupID = groupOperate
	generateCmd.GroupID = groupOperate
	rootCmd.AddCommand(migrateCmd, statusCmd, doctorCmd, validateCmd, serveCmd, benchCmd, generateCmd)

	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	licenseCmd.GroupID = groupUtility
	rootCmd.AddCommand(configCmd, versionCmd, licenseCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cli.ExitWithError(err)
	}
}

// resolveString returns the first non-empty string from values, implementing
// flag > config > default precedence.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveDSN gets the database DSN from flag or config.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return "", cli.ConfigError("database configuration", err)
	}
	if dsn == "" {
		return "", cli.ConfigError("database URL is required (use --db or set in config)", nil)
	}
	return dsn, nil
}

// Package cliconfig loads nexus's runtime configuration with standard
// layered precedence: flags > env > config file > defaults,
// auto-discovering nexus.yaml by walking up from the working directory to
// the repo root.
package cliconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const maxWalkDepth = 25

// Config is nexus's top-level configuration (nexus.yaml).
type Config struct {
	Schema   string         `mapstructure:"schema"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Engine   EngineConfig   `mapstructure:"engine"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ServerConfig holds the gRPC server's listen and logging settings.
type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	LogLevel string `mapstructure:"log_level"`
}

// CacheConfig holds every tunable the cache hierarchy exposes.
type CacheConfig struct {
	QuantumSeconds            int  `mapstructure:"quantum_seconds"`
	SubproblemTTLMembership    int  `mapstructure:"subproblem_ttl_membership_seconds"`
	SubproblemTTLAncestry      int  `mapstructure:"subproblem_ttl_ancestry_seconds"`
	SubproblemTTLGrant         int  `mapstructure:"subproblem_ttl_grant_seconds"`
	TigerMaxBitmapsPerTenant   int  `mapstructure:"tiger_max_bitmaps_per_tenant"`
	LeopardEnabled             bool `mapstructure:"leopard_enabled"`
	ChangelogPollMs            int  `mapstructure:"changelog_poll_ms"`
	DedupEnabled               bool `mapstructure:"dedup_enabled"`
}

// EngineConfig holds evaluator tunables.
type EngineConfig struct {
	WorkerThreads int `mapstructure:"evaluator_worker_threads"`
	MaxDepth      int `mapstructure:"max_depth"`
}

// Quantum returns the configured quantum as a time.Duration.
func (c CacheConfig) Quantum() time.Duration {
	return time.Duration(c.QuantumSeconds) * time.Second
}

// ChangelogPoll returns the configured changelog poll interval.
func (c CacheConfig) ChangelogPoll() time.Duration {
	return time.Duration(c.ChangelogPollMs) * time.Millisecond
}

// SubproblemTTLs returns the per-category TTL map cache/subproblem.New
// expects.
func (c CacheConfig) SubproblemTTLs() map[string]time.Duration {
	return map[string]time.Duration{
		"membership": time.Duration(c.SubproblemTTLMembership) * time.Second,
		"ancestry":   time.Duration(c.SubproblemTTLAncestry) * time.Second,
		"grant":      time.Duration(c.SubproblemTTLGrant) * time.Second,
	}
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("NEXUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("schema", "schemas/schema.fga")

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "prefer")

	v.SetDefault("server.addr", ":8443")
	v.SetDefault("server.log_level", "info")

	// Cache defaults.
	v.SetDefault("cache.quantum_seconds", 1)
	v.SetDefault("cache.subproblem_ttl_membership_seconds", 30)
	v.SetDefault("cache.subproblem_ttl_ancestry_seconds", 60)
	v.SetDefault("cache.subproblem_ttl_grant_seconds", 10)
	v.SetDefault("cache.tiger_max_bitmaps_per_tenant", 5000)
	v.SetDefault("cache.leopard_enabled", true)
	v.SetDefault("cache.changelog_poll_ms", 200)
	v.SetDefault("cache.dedup_enabled", true)

	v.SetDefault("engine.evaluator_worker_threads", 8)
	v.SetDefault("engine.max_depth", 25)
}

// findConfigFile walks up from the working directory looking for
// nexus.yaml or nexus.yml, stopping at a .git boundary or maxWalkDepth
// levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{"nexus.yaml", "nexus.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		gitPath := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitPath); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// DSN returns the database connection string, preferring an explicit URL
// over discrete host/name/user fields.
func (c *Config) DSN() (string, error) {
	db := c.Database

	if db.URL != "" {
		return db.URL, nil
	}

	if db.Host == "" {
		return "", fmt.Errorf("database.host is required when database.url is not set")
	}
	if db.Name == "" {
		return "", fmt.Errorf("database.name is required when database.url is not set")
	}
	if db.User == "" {
		return "", fmt.Errorf("database.user is required when database.url is not set")
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   "/" + db.Name,
	}

	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	} else {
		u.User = url.User(db.User)
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

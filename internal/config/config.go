// Package config loads CLI settings from a YAML file and MIGRATE_*
// environment variables. Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aqasim81/schemaledger/internal/tracker"
)

// Default values for configuration fields.
const (
	DefaultMigrationsDir    = "./migrations"
	DefaultLockTimeout      = 5 * time.Second
	DefaultStatementTimeout = 30 * time.Second
	DefaultConnectAttempts  = 5
	DefaultFormat           = "text"
)

// Config holds the application configuration loaded from file, environment, and flags.
type Config struct {
	DatabaseURL      string
	Driver           string // empty: derived from the URL scheme
	MigrationsDir    string
	HistoryTable     string
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	ConnectAttempts  int
	Async            bool
	UseLock          bool
	Format           string
}

// yamlConfig is the raw YAML file representation with string durations.
type yamlConfig struct {
	DatabaseURL      string `yaml:"database_url"`
	Driver           string `yaml:"driver"`
	MigrationsDir    string `yaml:"migrations_dir"`
	HistoryTable     string `yaml:"history_table"`
	LockTimeout      string `yaml:"lock_timeout"`
	StatementTimeout string `yaml:"statement_timeout"`
	ConnectAttempts  int    `yaml:"connect_attempts"`
	Async            *bool  `yaml:"async"`
	UseLock          *bool  `yaml:"use_lock"`
	Format           string `yaml:"format"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		MigrationsDir:    DefaultMigrationsDir,
		HistoryTable:     tracker.DefaultTableName,
		LockTimeout:      DefaultLockTimeout,
		StatementTimeout: DefaultStatementTimeout,
		ConnectAttempts:  DefaultConnectAttempts,
		UseLock:          true,
		Format:           DefaultFormat,
	}
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw YAML representation to a Config with defaults applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	setString(&cfg.DatabaseURL, raw.DatabaseURL)
	setString(&cfg.Driver, raw.Driver)
	setString(&cfg.MigrationsDir, raw.MigrationsDir)
	setString(&cfg.HistoryTable, raw.HistoryTable)
	setString(&cfg.Format, raw.Format)

	if err := setDuration(&cfg.LockTimeout, "lock_timeout", raw.LockTimeout); err != nil {
		return nil, err
	}

	if err := setDuration(&cfg.StatementTimeout, "statement_timeout", raw.StatementTimeout); err != nil {
		return nil, err
	}

	if raw.ConnectAttempts > 0 {
		cfg.ConnectAttempts = raw.ConnectAttempts
	}

	if raw.Async != nil {
		cfg.Async = *raw.Async
	}

	if raw.UseLock != nil {
		cfg.UseLock = *raw.UseLock
	}

	return cfg, cfg.Validate()
}

// MergeEnv overrides config fields from MIGRATE_* environment variables.
// Values that do not parse are ignored.
func MergeEnv(cfg *Config) {
	setString(&cfg.DatabaseURL, os.Getenv("MIGRATE_DATABASE_URL"))
	setString(&cfg.Driver, os.Getenv("MIGRATE_DRIVER"))
	setString(&cfg.MigrationsDir, os.Getenv("MIGRATE_MIGRATIONS_DIR"))
	setString(&cfg.HistoryTable, os.Getenv("MIGRATE_HISTORY_TABLE"))

	if v := os.Getenv("MIGRATE_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LockTimeout = d
		}
	}

	if v := os.Getenv("MIGRATE_STATEMENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StatementTimeout = d
		}
	}

	if v := os.Getenv("MIGRATE_CONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ConnectAttempts = n
		}
	}

	if v := os.Getenv("MIGRATE_ASYNC"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Async = b
		}
	}

	if v := os.Getenv("MIGRATE_USE_LOCK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.UseLock = b
		}
	}
}

// Validate checks fields that have a closed set of values.
func (c *Config) Validate() error {
	switch c.Format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("%w: %q (want text or json)", ErrInvalidFormat, c.Format)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, field, v string) error {
	if v == "" {
		return nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parsing %s %q: %w", field, v, err)
	}

	*dst = d

	return nil
}

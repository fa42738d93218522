package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration.
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	Import        ImportConfig        `yaml:"import"`
	Session       SessionConfig       `yaml:"session"`
	Migration     MigrationConfig     `yaml:"migration"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	// QueueMaxWorkers bounds how many import jobs run concurrently.
	QueueMaxWorkers int `yaml:"queue_max_workers"`
	// EntryWorkers bounds canonicalization fan-out within one job.
	EntryWorkers int `yaml:"entry_workers"`
	// ProviderTimeout applies to each rating-provider invocation.
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	// ResolveTimeout applies to the chart-resolution step of a job.
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`
	// ProviderRateLimit caps rating-provider calls per second, 0 = unlimited.
	ProviderRateLimit float64 `yaml:"provider_rate_limit"`
}

// SessionConfig tunes session grouping and aggregates.
type SessionConfig struct {
	// IdleGap is the maximum quiet period between plays that still belong
	// to the same session.
	IdleGap time.Duration `yaml:"idle_gap"`
	// TopN is how many best plays feed each session aggregate.
	TopN int `yaml:"top_n"`
}

// MigrationConfig tunes bulk data migrations.
type MigrationConfig struct {
	// BatchSize bounds how many rows a data migration holds in memory.
	BatchSize int `yaml:"batch_size"`
}

// ObservabilityConfig holds configuration for observability components.
type ObservabilityConfig struct {
	MetricsAddress string `yaml:"metrics_address"`
	Environment    string `yaml:"environment"`
}

// LoadConfig loads configuration from a YAML file, falling back to
// environment variables when the file is missing, and applying env overrides
// on top of file values either way.
func LoadConfig(filename string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(filename)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("METRICS_ADDRESS"); v != "" {
		cfg.Observability.MetricsAddress = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}
	if v := os.Getenv("IMPORT_QUEUE_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Import.QueueMaxWorkers = n
		}
	}
	if v := os.Getenv("SESSION_IDLE_GAP"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_IDLE_GAP value: %w", err)
		}
		cfg.Session.IdleGap = d
	}
	if v := os.Getenv("SESSION_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Session.TopN = n
		}
	}

	cfg.applyDefaults()

	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required (config file or DATABASE_URL)")
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Import.QueueMaxWorkers <= 0 {
		c.Import.QueueMaxWorkers = 10
	}
	if c.Import.EntryWorkers <= 0 {
		c.Import.EntryWorkers = 8
	}
	if c.Import.ProviderTimeout <= 0 {
		c.Import.ProviderTimeout = 5 * time.Second
	}
	if c.Import.ResolveTimeout <= 0 {
		c.Import.ResolveTimeout = 30 * time.Second
	}
	if c.Session.IdleGap <= 0 {
		c.Session.IdleGap = 2 * time.Hour
	}
	if c.Session.TopN <= 0 {
		c.Session.TopN = 10
	}
	if c.Migration.BatchSize <= 0 {
		c.Migration.BatchSize = 5000
	}
	if c.Observability.MetricsAddress == "" {
		c.Observability.MetricsAddress = ":9090"
	}
}

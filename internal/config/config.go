package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Archive Archive `yaml:"archive"`
	Catalog Catalog `yaml:"catalog"`
	Staging Staging `yaml:"staging"`
	Verify  Verify  `yaml:"verify"`
	Metrics Metrics `yaml:"metrics"`
	Logging Logging `yaml:"logging"`
}

// Archive configures the remote content-archive service.
type Archive struct {
	BaseURL        string `yaml:"base_url"`
	APIToken       string `yaml:"api_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Catalog configures the upload-attempt status store.
type Catalog struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Staging configures where upload bundles are staged before ingest.
type Staging struct {
	Backend    string `yaml:"backend"` // "local" | "gcs" | "s3"
	Bucket     string `yaml:"bucket"`
	Prefix     string `yaml:"prefix"`
	LocalDir   string `yaml:"local_dir"`
	S3Endpoint string `yaml:"s3_endpoint"`
	S3Region   string `yaml:"s3_region"`
}

// Verify configures the reconciliation engine.
type Verify struct {
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`
	WriteRetries           int `yaml:"write_retries"`
	WriteBackoffMs         int `yaml:"write_backoff_ms"`
	WatchInitialBackoffSec int `yaml:"watch_initial_backoff_sec"`
	WatchMaxBackoffSec     int `yaml:"watch_max_backoff_sec"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type Logging struct {
	Format string `yaml:"format"` // "json" | "text"
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
}

// MustLoad loads configuration from an optional YAML file, then applies
// environment variable overrides. Exits on malformed input.
func MustLoad(path string) Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("[config] %v", err)
	}
	return cfg
}

// Load reads the YAML file at path (if non-empty) and layers environment
// overrides on top of defaults.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.Verify.MaxConsecutiveFailures <= 0 {
		return cfg, fmt.Errorf("verify.max_consecutive_failures must be positive, got %d",
			cfg.Verify.MaxConsecutiveFailures)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Archive: Archive{
			TimeoutSeconds: 30,
		},
		Staging: Staging{
			Backend:  "local",
			Prefix:   "staging/",
			LocalDir: "./data",
		},
		Verify: Verify{
			MaxConsecutiveFailures: 3,
			WriteRetries:           3,
			WriteBackoffMs:         2000,
			WatchInitialBackoffSec: 30,
			WatchMaxBackoffSec:     900,
		},
		Metrics: Metrics{
			Address: ":9090",
		},
		Logging: Logging{
			Format: "text",
			Level:  "info",
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Archive.BaseURL = getenvDefault("ARCHIVE_URL", cfg.Archive.BaseURL)
	cfg.Archive.APIToken = getenvDefault("ARCHIVE_API_TOKEN", cfg.Archive.APIToken)
	cfg.Catalog.PostgresDSN = getenvDefault("CATALOG_DSN", cfg.Catalog.PostgresDSN)

	cfg.Staging.Backend = getenvDefault("STAGING_BACKEND", cfg.Staging.Backend)
	cfg.Staging.Bucket = getenvDefault("STAGING_BUCKET", cfg.Staging.Bucket)
	cfg.Staging.Prefix = getenvDefault("STAGING_PREFIX", cfg.Staging.Prefix)
	cfg.Staging.LocalDir = getenvDefault("STAGING_LOCAL_DIR", cfg.Staging.LocalDir)
	cfg.Staging.S3Endpoint = getenvDefault("STAGING_S3_ENDPOINT", cfg.Staging.S3Endpoint)
	cfg.Staging.S3Region = getenvDefault("STAGING_S3_REGION", cfg.Staging.S3Region)

	if v := os.Getenv("VERIFY_MAX_CONSECUTIVE_FAILURES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Verify.MaxConsecutiveFailures = parsed
		}
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true"
	}
	cfg.Metrics.Address = getenvDefault("METRICS_ADDRESS", cfg.Metrics.Address)
	cfg.Logging.Format = getenvDefault("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.Level = getenvDefault("LOG_LEVEL", cfg.Logging.Level)
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

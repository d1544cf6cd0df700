// Package config loads service configuration from defaults, an optional
// YAML file and WELLCOACH_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"wellcoach/internal/observability"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRecords  = "records"
)

// Config is the full service configuration.
type Config struct {
	Addr            string                      `yaml:"addr"`
	ShutdownTimeout time.Duration               `yaml:"shutdown_timeout"`
	Seed            bool                        `yaml:"seed"`
	Storage         StorageConfig               `yaml:"storage"`
	Log             observability.Config        `yaml:"log"`
	Metrics         observability.MetricsConfig `yaml:"metrics"`
	RateLimit       RateLimitConfig             `yaml:"rate_limit"`
	Sentry          SentryConfig                `yaml:"sentry"`
	Generation      GenerationConfig            `yaml:"generation"`
	Version         string                      `yaml:"-"`
}

// StorageConfig selects and configures the record store.
type StorageConfig struct {
	Driver      string        `yaml:"driver"`
	SQLiteDSN   string        `yaml:"sqlite_dsn"`
	PostgresURL string        `yaml:"postgres_url"`
	Records     RecordsConfig `yaml:"records"`
}

// RecordsConfig configures the hosted record-store adapter.
type RecordsConfig struct {
	BaseURL           string        `yaml:"base_url"`
	ProjectID         string        `yaml:"project_id"`
	APIKey            string        `yaml:"api_key"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
}

// RateLimitConfig configures the per-client API rate limiter.
// Zero RequestsPerSecond or Burst disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	// TrustedProxies is a comma-separated CIDR list whose X-Forwarded-For
	// header is honoured when keying clients.
	TrustedProxies string `yaml:"trusted_proxies"`
}

// SentryConfig configures error reporting. An empty DSN disables it.
type SentryConfig struct {
	DSN              string  `yaml:"dsn"`
	Environment      string  `yaml:"environment"`
	TracesSampleRate float64 `yaml:"traces_sample_rate"`
}

// GenerationConfig holds recommendation generation defaults.
type GenerationConfig struct {
	Limit       int `yaml:"limit"`
	AllLimit    int `yaml:"all_limit"`
	Concurrency int `yaml:"concurrency"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:            ":8080",
		ShutdownTimeout: 15 * time.Second,
		Storage: StorageConfig{
			Driver:    DriverMemory,
			SQLiteDSN: "file:wellcoach.db?cache=shared&_fk=1",
			Records: RecordsConfig{
				RequestsPerSecond: 10,
				Burst:             20,
				Timeout:           30 * time.Second,
			},
		},
		Log:       observability.DefaultConfig(),
		Metrics:   observability.DefaultMetricsConfig(),
		RateLimit: RateLimitConfig{RequestsPerSecond: 100, Burst: 200},
		Sentry:    SentryConfig{Environment: "production", TracesSampleRate: 1.0},
		Generation: GenerationConfig{
			Limit:       10,
			AllLimit:    5,
			Concurrency: 1,
		},
		Version: "dev",
	}
}

// Load reads path (if non-empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("WELLCOACH_ADDR", &c.Addr)
	if p, ok := lookup("PORT"); ok && p != "" {
		c.Addr = ":" + p
	}
	duration("WELLCOACH_SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)
	boolean("WELLCOACH_SEED", &c.Seed)

	str("WELLCOACH_STORAGE_DRIVER", &c.Storage.Driver)
	str("WELLCOACH_SQLITE_DSN", &c.Storage.SQLiteDSN)
	str("DATABASE_URL", &c.Storage.PostgresURL)
	str("WELLCOACH_RECORDS_BASE_URL", &c.Storage.Records.BaseURL)
	str("WELLCOACH_RECORDS_PROJECT_ID", &c.Storage.Records.ProjectID)
	str("WELLCOACH_RECORDS_API_KEY", &c.Storage.Records.APIKey)
	float("WELLCOACH_RECORDS_RPS", &c.Storage.Records.RequestsPerSecond)
	num("WELLCOACH_RECORDS_BURST", &c.Storage.Records.Burst)
	duration("WELLCOACH_RECORDS_TIMEOUT", &c.Storage.Records.Timeout)

	str("WELLCOACH_LOG_LEVEL", &c.Log.Level)
	str("WELLCOACH_LOG_FORMAT", &c.Log.Format)
	boolean("WELLCOACH_METRICS_ENABLED", &c.Metrics.Enabled)
	str("APP_VERSION", &c.Version)

	float("WELLCOACH_RATE_LIMIT_RPS", &c.RateLimit.RequestsPerSecond)
	num("WELLCOACH_RATE_LIMIT_BURST", &c.RateLimit.Burst)
	str("WELLCOACH_TRUSTED_PROXIES", &c.RateLimit.TrustedProxies)

	str("SENTRY_DSN", &c.Sentry.DSN)
	str("SENTRY_ENVIRONMENT", &c.Sentry.Environment)
	float("SENTRY_TRACES_SAMPLE_RATE", &c.Sentry.TracesSampleRate)

	num("WELLCOACH_GENERATE_LIMIT", &c.Generation.Limit)
	num("WELLCOACH_GENERATE_ALL_LIMIT", &c.Generation.AllLimit)
	num("WELLCOACH_GENERATE_CONCURRENCY", &c.Generation.Concurrency)

	c.Metrics.Version = c.Version
	return errors.Join(errs...)
}

// Validate checks the combination of settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLiteDSN == "" {
			errs = append(errs, errors.New("storage.sqlite_dsn is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.Storage.PostgresURL == "" {
			errs = append(errs, errors.New("storage.postgres_url is required for the postgres driver (or set DATABASE_URL)"))
		}
	case DriverRecords:
		r := c.Storage.Records
		if r.BaseURL == "" || r.ProjectID == "" || r.APIKey == "" {
			errs = append(errs, errors.New("storage.records needs base_url, project_id and api_key"))
		}
		if r.RequestsPerSecond < 0 {
			errs = append(errs, errors.New("storage.records.requests_per_second must not be negative"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}
	if c.Sentry.TracesSampleRate < 0 || c.Sentry.TracesSampleRate > 1 {
		errs = append(errs, errors.New("sentry.traces_sample_rate must be between 0 and 1"))
	}
	if c.Generation.Limit < 1 || c.Generation.AllLimit < 1 {
		errs = append(errs, errors.New("generation limits must be positive"))
	}
	if c.Generation.Concurrency < 1 {
		errs = append(errs, errors.New("generation.concurrency must be at least 1"))
	}
	return errors.Join(errs...)
}

// Enabled reports whether the API rate limiter is on.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerSecond > 0 && c.Burst > 0
}

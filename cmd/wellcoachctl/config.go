package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the CLI configuration.
type Config struct {
	ServerURL      string        `yaml:"server_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LoadConfig loads configuration from a YAML file and environment variables.
// Environment variables override YAML values; a non-empty serverFlag
// overrides both.
func LoadConfig(path, serverFlag string) (*Config, error) {
	cfg := &Config{
		ServerURL:      "http://localhost:8080",
		RequestTimeout: 2 * time.Minute,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := os.Getenv("WELLCOACH_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("WELLCOACH_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("WELLCOACH_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if serverFlag != "" {
		cfg.ServerURL = serverFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required configuration fields are set.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url is required (set --server, WELLCOACH_SERVER_URL or yaml)")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	return nil
}

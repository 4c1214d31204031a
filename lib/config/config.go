// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the configuration for Quarry commands.
type Config struct {
	// AccountFile is the path to the credentials file. Empty means
	// the standard location under the user's config directory.
	AccountFile string `yaml:"account_file"`

	// API configures how requests reach B2.
	API APIConfig `yaml:"api"`

	// Dispatch configures the request dispatcher.
	Dispatch DispatchConfig `yaml:"dispatch"`

	// LogLevel sets the minimum log level: debug, info, warn, error.
	// Default: info.
	LogLevel string `yaml:"log_level"`
}

// APIConfig configures how requests reach B2.
type APIConfig struct {
	// AuthorizeBaseURL is the base URL for the credential exchange.
	// Default: https://api.backblazeb2.com. Only tests and private
	// deployments change this.
	AuthorizeBaseURL string `yaml:"authorize_base_url"`

	// Timeout bounds each HTTP request. Default: 60s.
	Timeout time.Duration `yaml:"timeout"`
}

// DispatchConfig configures the request dispatcher.
type DispatchConfig struct {
	// Workers is the dispatcher pool size. Zero means one worker
	// per CPU.
	Workers int `yaml:"workers"`

	// RenewalMargin is how long before token expiry the session
	// re-authenticates. Default: 10m.
	RenewalMargin time.Duration `yaml:"renewal_margin"`
}

// Default returns the built-in configuration. Quarry runs without a
// config file; the file only overrides these values.
func Default() *Config {
	return &Config{
		API: APIConfig{
			AuthorizeBaseURL: "https://api.backblazeb2.com",
			Timeout:          60 * time.Second,
		},
		Dispatch: DispatchConfig{
			RenewalMargin: 10 * time.Minute,
		},
		LogLevel: "info",
	}
}

// Load loads configuration from the QUARRY_CONFIG environment
// variable. If QUARRY_CONFIG is unset the defaults are returned
// unchanged.
func Load() (*Config, error) {
	path := os.Getenv("QUARRY_CONFIG")
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging it
// over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.API.AuthorizeBaseURL == "" {
		errs = append(errs, fmt.Errorf("api.authorize_base_url is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout must be positive"))
	}
	if c.Dispatch.Workers < 0 {
		errs = append(errs, fmt.Errorf("dispatch.workers must not be negative"))
	}
	if c.Dispatch.RenewalMargin <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.renewal_margin must be positive"))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of: debug, info, warn, error"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

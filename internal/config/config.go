// Package config handles client core configuration from environment
// variables or a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all client core configuration.
type Config struct {
	// Backend
	SupabaseURL string `yaml:"supabase_url"`
	AnonKey     string `yaml:"anon_key"`

	// Behavior
	DedupWindow time.Duration `yaml:"dedup_window"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	LogLevel    string        `yaml:"log_level"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		DedupWindow: 500 * time.Millisecond,
		CacheTTL:    5 * time.Minute,
		HTTPTimeout: 30 * time.Second,
		LogLevel:    "info",
	}
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	// Required
	cfg.SupabaseURL = os.Getenv("CAMPUSLINK_SUPABASE_URL")
	if cfg.SupabaseURL == "" {
		return nil, errors.New("CAMPUSLINK_SUPABASE_URL is required")
	}

	cfg.AnonKey = os.Getenv("CAMPUSLINK_ANON_KEY")
	if cfg.AnonKey == "" {
		return nil, errors.New("CAMPUSLINK_ANON_KEY is required")
	}

	// Optional
	if raw := os.Getenv("CAMPUSLINK_DEDUP_WINDOW_MS"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			return nil, errors.New("CAMPUSLINK_DEDUP_WINDOW_MS must be a positive number (milliseconds)")
		}
		cfg.DedupWindow = time.Duration(ms) * time.Millisecond
	}

	if raw := os.Getenv("CAMPUSLINK_CACHE_TTL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return nil, errors.New("CAMPUSLINK_CACHE_TTL_SECONDS must be a positive number (seconds)")
		}
		cfg.CacheTTL = time.Duration(seconds) * time.Second
	}

	if raw := os.Getenv("CAMPUSLINK_HTTP_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return nil, errors.New("CAMPUSLINK_HTTP_TIMEOUT_SECONDS must be a positive number (seconds)")
		}
		cfg.HTTPTimeout = time.Duration(seconds) * time.Second
	}

	if level := os.Getenv("CAMPUSLINK_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file, with defaults for
// fields the file leaves unset.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.SupabaseURL == "" {
		return errors.New("supabase_url is required")
	}
	if c.AnonKey == "" {
		return errors.New("anon_key is required")
	}
	return nil
}

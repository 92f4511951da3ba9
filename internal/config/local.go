// Package config loads the playground daemon configuration from
// ~/.playground/config.yaml, .env files and PLAYGROUND_* variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers
const (
	DriverJSON     = "json"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// LocalConfig holds configuration for local daemon mode
type LocalConfig struct {
	Daemon    DaemonConfig    `yaml:"daemon" json:"daemon"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Levels    LevelsConfig    `yaml:"levels" json:"levels"`
	Renderer  RendererConfig  `yaml:"renderer" json:"renderer"`
	Autosave  AutosaveConfig  `yaml:"autosave" json:"autosave"`
	Events    EventsConfig    `yaml:"events" json:"events"`
	RateLimit RateLimitConfig `yaml:"ratelimit" json:"ratelimit"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port     int    `yaml:"port" json:"port"`
	Bind     string `yaml:"bind" json:"bind"`
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// StorageConfig selects the progress backend
type StorageConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	Path   string `yaml:"path,omitempty" json:"path,omitempty"`
	DSN    string `yaml:"dsn,omitempty" json:"-"`
}

// LevelsConfig holds level catalog settings
type LevelsConfig struct {
	Path          string `yaml:"path,omitempty" json:"path,omitempty"`
	EnforceUnlock bool   `yaml:"enforce_unlock" json:"enforce_unlock"`
}

// RendererConfig holds simulated run timing
type RendererConfig struct {
	MinDelayMS int `yaml:"min_delay_ms" json:"min_delay_ms"`
	MaxDelayMS int `yaml:"max_delay_ms" json:"max_delay_ms"`
}

// AutosaveConfig holds the periodic flush settings
type AutosaveConfig struct {
	IntervalSeconds int `yaml:"interval_seconds" json:"interval_seconds"`
}

// EventsConfig holds RabbitMQ publishing settings. An empty URL disables events.
type EventsConfig struct {
	AMQPURL string `yaml:"amqp_url,omitempty" json:"-"`
	Queue   string `yaml:"queue" json:"queue"`
}

// RateLimitConfig bounds simulated runs per client
type RateLimitConfig struct {
	RunsPerSecond int `yaml:"runs_per_second" json:"runs_per_second"`
	Burst         int `yaml:"burst" json:"burst"`
}

// MinDelay returns the shortest simulated run time
func (c RendererConfig) MinDelay() time.Duration {
	return time.Duration(c.MinDelayMS) * time.Millisecond
}

// MaxDelay returns the longest simulated run time
func (c RendererConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMS) * time.Millisecond
}

// Interval returns the autosave period
func (c AutosaveConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// PlaygroundDir returns the path to ~/.playground
func PlaygroundDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".playground"), nil
}

// EnsurePlaygroundDir creates ~/.playground and subdirectories if they don't exist
func EnsurePlaygroundDir() (string, error) {
	dir, err := PlaygroundDir()
	if err != nil {
		return "", err
	}

	for _, subdir := range []string{"", "logs", "data", "levels"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:     7433,
			Bind:     "127.0.0.1",
			LogLevel: "info",
		},
		Storage: StorageConfig{
			Driver: DriverJSON,
		},
		Renderer: RendererConfig{
			MinDelayMS: 400,
			MaxDelayMS: 1200,
		},
		Autosave: AutosaveConfig{
			IntervalSeconds: 30,
		},
		Events: EventsConfig{
			Queue: "playground.events",
		},
		RateLimit: RateLimitConfig{
			RunsPerSecond: 5,
			Burst:         10,
		},
	}
}

// StoragePath resolves the storage location relative to the playground dir
func (c *LocalConfig) StoragePath(dir string) string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	if c.Storage.Driver == DriverSQLite {
		return filepath.Join(dir, "playground.db")
	}
	return filepath.Join(dir, "data")
}

// LevelsPath resolves the custom levels directory
func (c *LocalConfig) LevelsPath(dir string) string {
	if c.Levels.Path != "" {
		return c.Levels.Path
	}
	return filepath.Join(dir, "levels")
}

// Validate reports configuration errors
func (c *LocalConfig) Validate() error {
	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon.port out of range: %d", c.Daemon.Port)
	}
	switch c.Storage.Driver {
	case DriverJSON, DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Renderer.MinDelayMS < 0 || c.Renderer.MaxDelayMS < c.Renderer.MinDelayMS {
		return fmt.Errorf("renderer delays must satisfy 0 <= min_delay_ms <= max_delay_ms")
	}
	if c.Autosave.IntervalSeconds < 0 {
		return fmt.Errorf("autosave.interval_seconds must not be negative")
	}
	return nil
}

// LoadLocalConfig loads configuration from ~/.playground
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := PlaygroundDir()
	if err != nil {
		return nil, err
	}
	return LoadLocalConfigFrom(dir)
}

// LoadLocalConfigFrom loads dir/config.yaml over the defaults, then applies
// .env files and PLAYGROUND_* environment overrides.
func LoadLocalConfigFrom(dir string) (*LocalConfig, error) {
	loadDotEnv(".env", filepath.Join(dir, ".env"))

	cfg := DefaultLocalConfig()

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveLocalConfig saves configuration to ~/.playground/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsurePlaygroundDir()
	if err != nil {
		return err
	}
	return SaveLocalConfigTo(dir, cfg)
}

// SaveLocalConfigTo writes cfg to dir/config.yaml
func SaveLocalConfigTo(dir string, cfg *LocalConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// May hold a DSN or broker credentials
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Package config loads the persistence settings: defaults, then a YAML file,
// then WK_* environment variables. Command-line flags are applied last by the
// commands themselves.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"worldkeeper.dev/internal/persistence/worlddb"
)

type Config struct {
	Enabled  bool   `yaml:"enabled" env:"WK_DB_ENABLED"`
	DBPath   string `yaml:"db_path" env:"WK_DB_PATH"`
	AuthPath string `yaml:"auth_path" env:"WK_AUTH_PATH"`

	QueueCapacity    int `yaml:"queue_capacity" env:"WK_QUEUE_CAPACITY"`
	EnqueueTimeoutMs int `yaml:"enqueue_timeout_ms" env:"WK_ENQUEUE_TIMEOUT_MS"`
	CommitIntervalMs int `yaml:"commit_interval_ms" env:"WK_COMMIT_INTERVAL_MS"`

	ItemsPath string `yaml:"items_path" env:"WK_ITEMS_PATH"`
}

func Defaults() Config {
	return Config{
		Enabled:          true,
		DBPath:           filepath.Join("data", "craft.db"),
		QueueCapacity:    worlddb.DefaultQueueCapacity,
		EnqueueTimeoutMs: 5000,
		CommitIntervalMs: 5000,
		ItemsPath:        filepath.Join("configs", "items.json"),
	}
}

// Load reads path on top of Defaults. Keys missing from the file keep their
// default value.
func Load(path string) (Config, error) {
	c := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return c, nil
}

// ApplyEnv overrides fields whose WK_* variable is set.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue_capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.Enabled && c.DBPath == "" {
		return fmt.Errorf("db_path is required when enabled")
	}
	if c.CommitIntervalMs < 0 {
		return fmt.Errorf("commit_interval_ms must not be negative, got %d", c.CommitIntervalMs)
	}
	return nil
}

func (c Config) CommitInterval() time.Duration {
	return time.Duration(c.CommitIntervalMs) * time.Millisecond
}

func (c Config) Engine() worlddb.Config {
	return worlddb.Config{
		Enabled:        c.Enabled,
		Path:           c.DBPath,
		AuthPath:       c.AuthPath,
		QueueCapacity:  c.QueueCapacity,
		EnqueueTimeout: time.Duration(c.EnqueueTimeoutMs) * time.Millisecond,
	}
}

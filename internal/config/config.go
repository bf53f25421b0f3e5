// Package config loads and validates the shelfrank configuration document.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Data    DataConfig    `yaml:"data"`
	Source  SourceConfig  `yaml:"source"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Cycle   CycleConfig   `yaml:"cycle"`
	Cleaner CleanerConfig `yaml:"cleaner"`
	Publish PublishConfig `yaml:"publish"`
	Server  ServerConfig  `yaml:"server"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Logging LoggingConfig `yaml:"logging"`
}

type DataConfig struct {
	Dir string `yaml:"dir" validate:"required"`
}

type SourceConfig struct {
	// Domain the product pages live on; submissions from any other host
	// are rejected at intake and at publication validation.
	Domain string `yaml:"domain" validate:"required,hostname"`
	// Binding the tracked books must have. Matching is signal-based:
	// format label, ISBN presence or physical dimensions presence.
	RequiredFormat string `yaml:"required_format" validate:"required"`
}

type FetchConfig struct {
	TimeoutSec    int      `yaml:"timeout_sec" validate:"min=1"`
	MaxRetries    int      `yaml:"max_retries" validate:"min=0"`
	BackoffBaseMs int      `yaml:"backoff_base_ms" validate:"min=1"`
	BackoffMaxMs  int      `yaml:"backoff_max_ms" validate:"min=1"`
	MaxRedirects  int      `yaml:"max_redirects" validate:"min=0"`
	DelayMinMs    int      `yaml:"delay_min_ms" validate:"min=0"`
	DelayMaxMs    int      `yaml:"delay_max_ms" validate:"min=0"`
	UserAgents    []string `yaml:"user_agents,omitempty"`
}

type CycleConfig struct {
	// Lock files older than this are treated as abandoned.
	LockStaleSec int `yaml:"lock_stale_sec" validate:"min=1"`
	// Interval between automatic cycles in daemon mode.
	IntervalSec int `yaml:"interval_sec" validate:"min=1"`
}

type CleanerConfig struct {
	MaxFailedAttempts int `yaml:"max_failed_attempts" validate:"min=1"`
}

type PublishConfig struct {
	Version string `yaml:"version" validate:"required"`
}

type ServerConfig struct {
	ListenAddr   string `yaml:"listen_addr" validate:"required"`
	RatePerMin   int    `yaml:"rate_per_min" validate:"min=1"`
	RateBurst    int    `yaml:"rate_burst" validate:"min=1"`
	MaxQueueSize int    `yaml:"max_queue_size" validate:"min=1"`
}

type DaemonConfig struct {
	ShutdownTimeoutSec int     `yaml:"shutdown_timeout_sec" validate:"min=1"`
	WatchDebounceSec   float64 `yaml:"watch_debounce_sec"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
}

func Default() Config {
	return Config{
		Data: DataConfig{Dir: "data"},
		Source: SourceConfig{
			Domain:         "www.amazon.com",
			RequiredFormat: "paperback",
		},
		Fetch: FetchConfig{
			TimeoutSec:    30,
			MaxRetries:    4,
			BackoffBaseMs: 1000,
			BackoffMaxMs:  30000,
			MaxRedirects:  5,
			DelayMinMs:    2000,
			DelayMaxMs:    6000,
		},
		Cycle: CycleConfig{
			LockStaleSec: 3600,
			IntervalSec:  21600,
		},
		Cleaner: CleanerConfig{MaxFailedAttempts: 3},
		Publish: PublishConfig{Version: "1"},
		Server: ServerConfig{
			ListenAddr:   ":8080",
			RatePerMin:   6,
			RateBurst:    3,
			MaxQueueSize: 500,
		},
		Daemon: DaemonConfig{
			ShutdownTimeoutSec: 30,
			WatchDebounceSec:   2.0,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

var validate = validator.New()

// Load reads the config file at path, falling back to defaults when the
// file does not exist. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()

	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHELFRANK_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("SHELFRANK_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("SHELFRANK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("config validation: field %s fails %q", f.Namespace(), f.Tag())
		}
		return fmt.Errorf("config validation: %w", err)
	}
	if c.Fetch.DelayMinMs > c.Fetch.DelayMaxMs {
		return fmt.Errorf("config validation: fetch.delay_min_ms %d exceeds fetch.delay_max_ms %d",
			c.Fetch.DelayMinMs, c.Fetch.DelayMaxMs)
	}
	if c.Fetch.BackoffBaseMs > c.Fetch.BackoffMaxMs {
		return fmt.Errorf("config validation: fetch.backoff_base_ms %d exceeds fetch.backoff_max_ms %d",
			c.Fetch.BackoffBaseMs, c.Fetch.BackoffMaxMs)
	}
	return nil
}

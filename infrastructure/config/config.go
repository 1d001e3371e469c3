package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment override, e.g. FREIGHTLEDGER_HTTP_ADDR.
	EnvPrefix = "freightledger"
	// PathEnv names the YAML file used when no explicit path is given.
	PathEnv = "FREIGHTLEDGER_CONFIG"

	DefaultAdvanceMinutes = 24 * 60
)

type HTTPConfig struct {
	Addr           string   `yaml:"addr" split_words:"true"`
	AllowedOrigins []string `yaml:"allowed_origins" split_words:"true"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" split_words:"true"`
	// MigrationsDir is optional; empty applies the embedded migrations.
	MigrationsDir string `yaml:"migrations_dir" split_words:"true"`
}

type ClockConfig struct {
	// AdvanceMinutes is the fixed increment used by a bare "advance".
	AdvanceMinutes int `yaml:"advance_minutes" split_words:"true"`
}

type BatchConfig struct {
	MaxRetryElapsed      time.Duration `yaml:"max_retry_elapsed" split_words:"true"`
	InitialRetryInterval time.Duration `yaml:"initial_retry_interval" split_words:"true"`
}

type LogConfig struct {
	Level string `yaml:"level" split_words:"true"`
}

// Config is the process configuration. Values are layered as
// defaults, then the YAML file, then FREIGHTLEDGER_* environment variables.
type Config struct {
	HTTP   HTTPConfig   `yaml:"http" envconfig:"HTTP"`
	SQLite SQLiteConfig `yaml:"sqlite" envconfig:"SQLITE"`
	Clock  ClockConfig  `yaml:"clock" envconfig:"CLOCK"`
	Batch  BatchConfig  `yaml:"batch" envconfig:"BATCH"`
	Log    LogConfig    `yaml:"log" envconfig:"LOG"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP:   HTTPConfig{Addr: ":8080"},
		SQLite: SQLiteConfig{Path: "freightledger.db"},
		Clock:  ClockConfig{AdvanceMinutes: DefaultAdvanceMinutes},
		Batch: BatchConfig{
			MaxRetryElapsed:      5 * time.Second,
			InitialRetryInterval: 50 * time.Millisecond,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from path (or $FREIGHTLEDGER_CONFIG when path is
// empty), applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("read env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c.HTTP,
		validation.Field(&c.HTTP.Addr, validation.Required),
	); err != nil {
		return fmt.Errorf("http config: %w", err)
	}
	if err := validation.ValidateStruct(&c.SQLite,
		validation.Field(&c.SQLite.Path, validation.Required),
	); err != nil {
		return fmt.Errorf("sqlite config: %w", err)
	}
	if err := validation.ValidateStruct(&c.Clock,
		validation.Field(&c.Clock.AdvanceMinutes, validation.Required, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("clock config: %w", err)
	}
	if err := validation.ValidateStruct(&c.Batch,
		validation.Field(&c.Batch.MaxRetryElapsed, validation.Min(time.Duration(0))),
		validation.Field(&c.Batch.InitialRetryInterval, validation.Required, validation.Min(time.Millisecond)),
	); err != nil {
		return fmt.Errorf("batch config: %w", err)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	return nil
}

// Logger builds the process logger at the configured level.
func (c Config) Logger() *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func parseLevel(value string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(value) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
	}
	return level, nil
}

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/LazyCorpz/Signal-Server/store"
)

// Store backends
const (
	storeMemory = "memory"
	storeRedis  = "redis"
)

// Config is the service configuration, read from the environment
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`

	// LimitsPath is an optional YAML file with extra limiters and static configs
	LimitsPath string `env:"LIMITS_PATH"`

	// OverridesPath is an optional YAML file with dynamic limiter overrides.
	// It is re-read on SIGHUP and every refresh interval.
	OverridesPath            string        `env:"OVERRIDES_PATH"`
	OverridesRefreshInterval time.Duration `env:"OVERRIDES_REFRESH_INTERVAL" envDefault:"30s"`

	Store                 string        `env:"STORE" envDefault:"memory"`
	MemoryCleanupInterval time.Duration `env:"MEMORY_CLEANUP_INTERVAL" envDefault:"1m"`
	Redis                 store.RedisConfig
}

// loadConfig reads .env files, when present, then the environment.
// Variables already set in the environment win over .env values.
func loadConfig(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	switch cfg.Store {
	case storeMemory, storeRedis:
	default:
		return Config{}, fmt.Errorf("unknown STORE %q, want %q or %q", cfg.Store, storeMemory, storeRedis)
	}
	if _, err := cfg.level(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

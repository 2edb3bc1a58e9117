/*
Package config loads server configuration.

LOAD ORDER (later wins):
  1. Built-in defaults (defaults.go)
  2. .env file in the working directory, if present (exported into the env)
  3. TOML file passed with --config
  4. Environment variables with the JOBCLOCK_ prefix

ENV MAPPING:
  The first underscore after the prefix separates section from key:
    JOBCLOCK_SERVER_PORT=9000            -> server.port
    JOBCLOCK_ENGINE_CLOCK_IN_WINDOW=10m  -> engine.clock_in_window
    JOBCLOCK_CORS_ALLOWED_ORIGINS=a,b    -> cors.allowed_origins
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "JOBCLOCK_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Logging  LoggingConfig  `koanf:"logging"`
	Engine   EngineConfig   `koanf:"engine"`
	CORS     CORSConfig     `koanf:"cors"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	// Path is a SQLite file path, or ":memory:".
	Path string `koanf:"path"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "pretty" or "json"
}

type EngineConfig struct {
	ClockInWindow time.Duration `koanf:"clock_in_window"`
	LockTimeout   time.Duration `koanf:"lock_timeout"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// Load reads config from defaults, .env, an optional TOML file and env vars.
func Load(configPath string) (*Config, error) {
	// .env values never override variables already set in the process.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", configPath, err)
		}
	}

	// Only set env vars that have non-empty values to avoid overriding TOML config.
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(key, value string) (string, any) {
	if value == "" {
		return "", nil
	}
	mapped := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	mapped = strings.Replace(mapped, "_", ".", 1)
	if mapped == "cors.allowed_origins" {
		return mapped, splitList(value)
	}
	return mapped, value
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Engine.ClockInWindow < 0 {
		return fmt.Errorf("engine.clock_in_window must not be negative: %s", c.Engine.ClockInWindow)
	}
	if c.Engine.LockTimeout <= 0 {
		return fmt.Errorf("engine.lock_timeout must be positive: %s", c.Engine.LockTimeout)
	}
	switch c.Logging.Format {
	case "pretty", "json":
	default:
		return fmt.Errorf("logging.format must be pretty or json, got %q", c.Logging.Format)
	}
	return nil
}

// Package config loads runtime settings from the environment (and an
// optional .env file) with viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Avatars   AvatarsConfig   `mapstructure:"avatars"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver      string        `mapstructure:"driver"`
	Path        string        `mapstructure:"path"`
	URL         string        `mapstructure:"url"`
	OpTimeout   time.Duration `mapstructure:"op_timeout"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
	MaxOpenConn int           `mapstructure:"max_open_conns"`
}

type AvatarsConfig struct {
	Quota int `mapstructure:"quota"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	JWTTTL     time.Duration `mapstructure:"jwt_ttl"`
	Issuer     string        `mapstructure:"issuer"`
	APIKey     string        `mapstructure:"api_key"`
	APIKeyHash string        `mapstructure:"api_key_hash"`
}

// Enabled reports whether token issuing and verification are configured.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

var envBindings = map[string]string{
	"server.port":             "PORT",
	"database.driver":         "DB_DRIVER",
	"database.path":           "DB_PATH",
	"database.url":            "DATABASE_URL",
	"database.op_timeout":     "DB_OP_TIMEOUT",
	"database.busy_timeout":   "DB_BUSY_TIMEOUT",
	"database.max_open_conns": "DB_MAX_OPEN_CONNS",
	"avatars.quota":           "AVATAR_QUOTA",
	"auth.jwt_secret":         "JWT_SECRET",
	"auth.jwt_ttl":            "JWT_TTL",
	"auth.issuer":             "JWT_ISSUER",
	"auth.api_key":            "AUTH_API_KEY",
	"auth.api_key_hash":       "AUTH_API_KEY_HASH",
	"cors.allowed_origins":    "CORS_ALLOWED_ORIGINS",
	"ratelimit.rps":           "RATE_LIMIT_RPS",
	"ratelimit.burst":         "RATE_LIMIT_BURST",
	"log.level":               "LOG_LEVEL",
	"log.format":              "LOG_FORMAT",
	"log.file":                "LOG_FILE",
	"log.max_size_mb":         "LOG_MAX_SIZE_MB",
	"log.max_backups":         "LOG_MAX_BACKUPS",
	"log.max_age_days":        "LOG_MAX_AGE_DAYS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "data/avatars.db")
	v.SetDefault("database.url", "")
	v.SetDefault("database.op_timeout", "5s")
	v.SetDefault("database.busy_timeout", "5s")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("avatars.quota", 5)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_ttl", "1h")
	v.SetDefault("auth.issuer", "avatar-vault")
	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.api_key_hash", "")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("ratelimit.rps", 10)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 20)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}

// Load reads .env (when present, without overriding real environment
// variables) and then the environment itself.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromViper(viper.New())
}

// FromViper builds a Config from v after installing defaults and env
// bindings. Tests pass their own viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("config: binding %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}
	cfg.CORS.AllowedOrigins = splitList(cfg.CORS.AllowedOrigins)
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Server.Port)
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("config: DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.Database.Driver)
	}
	if c.Avatars.Quota < 1 {
		return fmt.Errorf("config: AVATAR_QUOTA must be at least 1, got %d", c.Avatars.Quota)
	}
	if c.Database.OpTimeout <= 0 {
		return errors.New("config: DB_OP_TIMEOUT must be positive")
	}
	if c.Auth.Enabled() && c.Auth.JWTTTL <= 0 {
		return errors.New("config: JWT_TTL must be positive")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1 {
		return errors.New("config: RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// splitList flattens comma-separated entries, as env vars arrive as one
// string.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

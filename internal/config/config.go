package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port          string
	DBDriver      string
	DBPath        string
	DatabaseURL   string
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string
	CORSHeaders   []string
	CORSMaxAge    time.Duration
	MigrationsDir string
	NATSURL       string
	LogLevel      string
	LogFormat     string
	Timezone      string
	AuthRateLimit int
}

// fileConfig mirrors the environment variable names, lower-cased, so the
// same keys work in a YAML file and in the environment.
type fileConfig struct {
	Port          string `koanf:"port"`
	DBDriver      string `koanf:"db_driver"`
	DBPath        string `koanf:"db_path"`
	DatabaseURL   string `koanf:"database_url"`
	JWTSecret     string `koanf:"jwt_secret"`
	TokenTTLHours int    `koanf:"token_ttl_hours"`
	CORSOrigins   string `koanf:"cors_origins"`
	CORSHeaders   string `koanf:"cors_headers"`
	CORSMaxAge    int    `koanf:"cors_max_age_seconds"`
	MigrationsDir string `koanf:"migrations_dir"`
	NATSURL       string `koanf:"nats_url"`
	LogLevel      string `koanf:"log_level"`
	LogFormat     string `koanf:"log_format"`
	Timezone      string `koanf:"timezone"`
	AuthRateLimit int    `koanf:"auth_rate_limit"`
}

var knownKeys = map[string]bool{
	"port": true, "db_driver": true, "db_path": true, "database_url": true,
	"jwt_secret": true, "token_ttl_hours": true, "cors_origins": true,
	"cors_headers": true, "cors_max_age_seconds": true,
	"migrations_dir": true, "nats_url": true, "log_level": true,
	"log_format": true, "timezone": true, "auth_rate_limit": true,
}

var defaultCORSOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

// Load reads defaults, then the YAML file named by CONFIG_FILE (if any),
// then the environment.
func Load() (Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

func LoadFile(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if !knownKeys[key] {
			return ""
		}
		return key
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var raw fileConfig
	if err := k.Unmarshal("", &raw); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg := fromFile(raw)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func fromFile(raw fileConfig) Config {
	return Config{
		Port:          raw.Port,
		DBDriver:      strings.ToLower(strings.TrimSpace(raw.DBDriver)),
		DBPath:        raw.DBPath,
		DatabaseURL:   raw.DatabaseURL,
		JWTSecret:     raw.JWTSecret,
		TokenTTL:      time.Duration(raw.TokenTTLHours) * time.Hour,
		CORSOrigins:   splitList(raw.CORSOrigins),
		CORSHeaders:   splitList(raw.CORSHeaders),
		CORSMaxAge:    time.Duration(raw.CORSMaxAge) * time.Second,
		MigrationsDir: raw.MigrationsDir,
		NATSURL:       raw.NATSURL,
		LogLevel:      raw.LogLevel,
		LogFormat:     raw.LogFormat,
		Timezone:      raw.Timezone,
		AuthRateLimit: raw.AuthRateLimit,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = DriverSQLite
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./data/studytrack.db"
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "change-this-secret"
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 72 * time.Hour
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = append([]string(nil), defaultCORSOrigins...)
	}
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = "./migrations"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.AuthRateLimit == 0 {
		cfg.AuthRateLimit = 30
	}
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for sqlite")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL_HOURS must be positive")
	}
	if c.CORSMaxAge < 0 {
		return fmt.Errorf("CORS_MAX_AGE_SECONDS must not be negative")
	}
	if c.AuthRateLimit < 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT must not be negative")
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// DSN returns the data source for the configured driver.
func (c Config) DSN() string {
	if c.DBDriver == DriverPostgres {
		return c.DatabaseURL
	}
	return c.DBPath
}

// Location resolves Timezone; Validate guarantees it loads.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// Package config loads the provenance server configuration from a YAML file,
// PROVENANCE_* environment variables and built-in defaults, in increasing
// order of precedence: defaults < file < environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const EnvPrefix = "PROVENANCE"

var (
	databaseTypes = mapset.NewSet("memory", "sqlite", "postgres", "postgresql", "mysql")
	handleModes   = mapset.NewSet("compat", "sequenced")
	authModes     = mapset.NewSet("header", "jwt")
)

type Config struct {
	Listen   string         `mapstructure:"listen"`
	Admin    string         `mapstructure:"admin"`
	LogLevel string         `mapstructure:"logLevel"`
	Handles  string         `mapstructure:"handles"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Events   EventsConfig   `mapstructure:"events"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

type DatabaseConfig struct {
	Type string `mapstructure:"type"` // memory, sqlite, postgres or mysql
	DSN  string `mapstructure:"dsn"`
}

type AuthConfig struct {
	Mode string    `mapstructure:"mode"` // header or jwt
	JWT  JWTConfig `mapstructure:"jwt"`
}

type JWTConfig struct {
	PrincipalClaim string `mapstructure:"principalClaim"`
	PublicKeyPath  string `mapstructure:"publicKeyPath"`
	Issuer         string `mapstructure:"issuer"`
	Audience       string `mapstructure:"audience"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type EventsConfig struct {
	BufferSize int           `mapstructure:"bufferSize"`
	Heartbeat  time.Duration `mapstructure:"heartbeat"`
}

type AuditConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	LogDenied     bool `mapstructure:"logDenied"`
	RetentionDays int  `mapstructure:"retentionDays"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"maxSize"`
}

// defaults lists every key with its default value and environment
// variable. Keys without a default still need an entry so the environment
// can set them.
var defaults = []struct {
	key   string
	env   string
	value any
}{
	{"listen", "LISTEN", ":8080"},
	{"admin", "ADMIN", ""},
	{"logLevel", "LOG_LEVEL", "info"},
	{"handles", "HANDLES", "compat"},
	{"database.type", "DATABASE_TYPE", "memory"},
	{"database.dsn", "DATABASE_DSN", ""},
	{"auth.mode", "AUTH_MODE", "header"},
	{"auth.jwt.principalClaim", "JWT_PRINCIPAL_CLAIM", "sub"},
	{"auth.jwt.publicKeyPath", "JWT_PUBLIC_KEY_PATH", ""},
	{"auth.jwt.issuer", "JWT_ISSUER", ""},
	{"auth.jwt.audience", "JWT_AUDIENCE", ""},
	{"cors.allowedOrigins", "CORS_ALLOWED_ORIGINS", []string{"https://*", "http://*"}},
	{"events.bufferSize", "EVENTS_BUFFER_SIZE", 64},
	{"events.heartbeat", "EVENTS_HEARTBEAT", 30 * time.Second},
	{"audit.enabled", "AUDIT_ENABLED", true},
	{"audit.logDenied", "AUDIT_LOG_DENIED", true},
	{"audit.retentionDays", "AUDIT_RETENTION_DAYS", 90},
	{"cache.enabled", "CACHE_ENABLED", false},
	{"cache.ttl", "CACHE_TTL", 30 * time.Second},
	{"cache.maxSize", "CACHE_MAX_SIZE", 1000},
}

// Loader reads the configuration and can watch its file for changes.
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader returns a loader for the YAML file at path. An empty path uses
// defaults and the environment only.
func NewLoader(path string) *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	for _, d := range defaults {
		v.SetDefault(d.key, d.value)
		_ = v.BindEnv(d.key, EnvPrefix+"_"+d.env)
	}
	if path != "" {
		v.SetConfigFile(path)
	}
	return &Loader{v: v, path: path}
}

// Load reads the file (when set), applies the environment and validates
// the result.
func (l *Loader) Load() (*Config, error) {
	if l.path != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", l.path, err)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch calls onChange with the new configuration every time the file is
// written. Invalid edits are logged and skipped. Watch does nothing without
// a file.
func (l *Loader) Watch(logger *slog.Logger, onChange func(*Config)) {
	if l.path == "" {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			logger.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}
		logger.Info("config reloaded", "file", e.Name)
		onChange(cfg)
	})
	l.v.WatchConfig()
}

func (c *Config) normalize() {
	c.Handles = strings.ToLower(strings.TrimSpace(c.Handles))
	c.Database.Type = strings.ToLower(strings.TrimSpace(c.Database.Type))
	c.Auth.Mode = strings.ToLower(strings.TrimSpace(c.Auth.Mode))
	if c.Auth.Mode == "" {
		c.Auth.Mode = "header"
	}
	if c.Auth.JWT.PrincipalClaim == "" {
		c.Auth.JWT.PrincipalClaim = "sub"
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Admin) == "" {
		errs = append(errs, errors.New("admin is required"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if !handleModes.Contains(c.Handles) {
		errs = append(errs, fmt.Errorf("handles %q must be one of %v", c.Handles, sorted(handleModes)))
	}
	if !databaseTypes.Contains(c.Database.Type) {
		errs = append(errs, fmt.Errorf("database.type %q must be one of %v", c.Database.Type, sorted(databaseTypes)))
	} else if c.Database.Type != "memory" && c.Database.DSN == "" {
		errs = append(errs, fmt.Errorf("database.dsn is required for database.type %q", c.Database.Type))
	}
	if !authModes.Contains(c.Auth.Mode) {
		errs = append(errs, fmt.Errorf("auth.mode %q must be one of %v", c.Auth.Mode, sorted(authModes)))
	}
	if c.Events.BufferSize < 0 {
		errs = append(errs, errors.New("events.bufferSize must not be negative"))
	}
	if c.Audit.RetentionDays < 0 {
		errs = append(errs, errors.New("audit.retentionDays must not be negative"))
	}
	if c.Cache.Enabled && c.Cache.MaxSize < 1 {
		errs = append(errs, errors.New("cache.maxSize must be positive when the cache is enabled"))
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel (debug, info, warn, error).
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("logLevel %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func sorted(s mapset.Set[string]) []string {
	out := s.ToSlice()
	slices.Sort(out)
	return out
}

package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/wherefn/internal/cache"
)

// Cache backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// EnvPrefix prefixes environment overrides: WHEREFN_CACHE_BACKEND=redis.
const EnvPrefix = "WHEREFN"

// Config is the wherefn configuration.
type Config struct {
	Specs SpecsConfig `mapstructure:"specs"`
	Cache CacheConfig `mapstructure:"cache"`
	Log   LogConfig   `mapstructure:"log"`
}

// SpecsConfig locates the CUE schema and predicate declarations.
type SpecsConfig struct {
	Dir string `mapstructure:"dir"`
}

// CacheConfig selects and configures the compiled unit cache.
type CacheConfig struct {
	Backend string       `mapstructure:"backend"`
	SQLite  SQLiteConfig `mapstructure:"sqlite"`
	Redis   RedisConfig  `mapstructure:"redis"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr   string        `mapstructure:"addr"`
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// LogConfig sets the slog level: debug, info, warn or error.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads wherefn.yaml (or .yml) from dir, applies WHEREFN_* environment
// overrides and fills defaults. A missing file is not an error.
func Load(dir string) (*Config, error) {
	v := newViper()
	v.SetConfigName("wherefn")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFile reads the config file at path, which must exist.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("specs.dir", "specs")
	v.SetDefault("cache.backend", BackendMemory)
	v.SetDefault("cache.sqlite.path", ".wherefn/cache.db")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.prefix", cache.DefaultRedisOptions().Prefix)
	v.SetDefault("cache.redis.ttl", time.Duration(0))
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	switch cfg.Cache.Backend {
	case BackendNone, BackendMemory:
	case BackendSQLite:
		if cfg.Cache.SQLite.Path == "" {
			return fmt.Errorf("cache.sqlite.path is required for the sqlite backend")
		}
	case BackendRedis:
		if cfg.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
		if cfg.Cache.Redis.TTL < 0 {
			return fmt.Errorf("cache.redis.ttl must not be negative, got %s", cfg.Cache.Redis.TTL)
		}
	default:
		return fmt.Errorf("cache.backend must be one of none, memory, sqlite, redis; got %q", cfg.Cache.Backend)
	}
	if _, err := cfg.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Open builds the configured cache backend. The returned close function
// releases backend connections; it is never nil. A nil Cache means
// caching is disabled.
func (c CacheConfig) Open(ctx context.Context) (cache.Cache, func() error, error) {
	noop := func() error { return nil }
	switch c.Backend {
	case BackendNone:
		return nil, noop, nil
	case BackendMemory, "":
		return cache.NewMemory(), noop, nil
	case BackendSQLite:
		s, err := cache.OpenSQLite(c.SQLite.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case BackendRedis:
		r, err := cache.DialRedis(ctx, c.Redis.Addr, cache.RedisOptions{Prefix: c.Redis.Prefix, TTL: c.Redis.TTL})
		if err != nil {
			return nil, noop, err
		}
		return r, r.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", c.Backend)
	}
}

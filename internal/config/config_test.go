package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wherefn/internal/cache"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wherefn.yaml"), []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "specs", cfg.Specs.Dir)
	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, ".wherefn/cache.db", cfg.Cache.SQLite.Path)
	assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "wherefn:unit:", cfg.Cache.Redis.Prefix)
	assert.Zero(t, cfg.Cache.Redis.TTL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
specs:
  dir: model
cache:
  backend: Redis
  redis:
    addr: cache:6379
    prefix: "app:"
    ttl: 10m
log:
  level: debug
`)
	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "model", cfg.Specs.Dir)
	assert.Equal(t, BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "app:", cfg.Cache.Redis.Prefix)
	assert.Equal(t, 10*time.Minute, cfg.Cache.Redis.TTL)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	same, err := LoadFile(filepath.Join(dir, "wherefn.yaml"))
	require.NoError(t, err)
	assert.Equal(t, cfg, same)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "cache:\n  backend: memory\n")
	t.Setenv("WHEREFN_CACHE_BACKEND", "sqlite")
	t.Setenv("WHEREFN_CACHE_SQLITE_PATH", "/tmp/x.db")
	t.Setenv("WHEREFN_SPECS_DIR", "elsewhere")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Cache.Backend)
	assert.Equal(t, "/tmp/x.db", cfg.Cache.SQLite.Path)
	assert.Equal(t, "elsewhere", cfg.Specs.Dir)
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"backend":   "cache:\n  backend: memcached\n",
		"level":     "log:\n  level: loud\n",
		"ttl":       "cache:\n  backend: redis\n  redis:\n    ttl: -1s\n",
		"sqlite":    "cache:\n  backend: sqlite\n  sqlite:\n    path: \"\"\n",
		"malformed": "cache: [\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, content)
			_, err := Load(dir)
			assert.Error(t, err)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestCacheOpen(t *testing.T) {
	ctx := context.Background()

	c, closeFn, err := CacheConfig{Backend: BackendNone}.Open(ctx)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, closeFn())

	c, closeFn, err = CacheConfig{Backend: BackendMemory}.Open(ctx)
	require.NoError(t, err)
	assert.IsType(t, &cache.Memory{}, c)
	assert.NoError(t, closeFn())

	c, closeFn, err = CacheConfig{Backend: BackendSQLite, SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "c.db")}}.Open(ctx)
	require.NoError(t, err)
	assert.IsType(t, &cache.SQLite{}, c)
	assert.NoError(t, closeFn())

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	c, closeFn, err = CacheConfig{Backend: BackendRedis, Redis: RedisConfig{Addr: mr.Addr(), Prefix: "p:"}}.Open(ctx)
	require.NoError(t, err)
	assert.IsType(t, &cache.Redis{}, c)
	assert.NoError(t, closeFn())

	_, _, err = CacheConfig{Backend: "other"}.Open(ctx)
	assert.Error(t, err)
}

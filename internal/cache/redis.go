package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/wherefn/internal/filterir"
)

// RedisOptions configures a Redis cache.
type RedisOptions struct {
	// Prefix is prepended to every source key.
	Prefix string
	// TTL expires stored units; zero keeps them until evicted.
	TTL time.Duration
}

// DefaultRedisOptions returns the options used when none are given.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{Prefix: "wherefn:unit:"}
}

// Redis is a Cache shared through a Redis server.
type Redis struct {
	client *redis.Client
	opts   RedisOptions
}

// DialRedis connects to addr and checks the connection.
func DialRedis(ctx context.Context, addr string, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return NewRedis(client, opts), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, opts RedisOptions) *Redis {
	return &Redis{client: client, opts: opts}
}

func (r *Redis) Get(ctx context.Context, key string) (*filterir.CompiledUnit, bool, error) {
	data, err := r.client.Get(ctx, r.opts.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	unit, err := filterir.Unmarshal(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode compiled unit %s: %w", key, err)
	}
	return unit, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, unit *filterir.CompiledUnit) error {
	data, err := filterir.Marshal(unit)
	if err != nil {
		return fmt.Errorf("encode compiled unit %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.opts.Prefix+key, data, r.opts.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the Redis connection configuration.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	KeyPrefix  string
	DefaultTTL time.Duration
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:       "localhost:6379",
		KeyPrefix:  "drillbox:",
		DefaultTTL: 10 * time.Minute,
	}
}

// RedisBackend stores cache entries in Redis under a key prefix.
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
	logger    *slog.Logger
}

// NewRedisBackend connects to Redis and verifies the connection with a ping.
func NewRedisBackend(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisBackend, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	logger.Info("redis cache connected", "addr", cfg.Addr)
	return &RedisBackend{client: client, keyPrefix: cfg.KeyPrefix, logger: logger}, nil
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("failed to get cache value", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := r.client.Set(ctx, r.keyPrefix+key, value, ttl).Err(); err != nil {
		r.logger.Warn("failed to set cache value", "key", key, "error", err)
	}
}

// DeletePrefix removes every key starting with prefix.
func (r *RedisBackend) DeletePrefix(ctx context.Context, prefix string) {
	it := r.client.Scan(ctx, 0, r.keyPrefix+prefix+"*", 100).Iterator()
	var keys []string
	for it.Next(ctx) {
		keys = append(keys, it.Val())
		if len(keys) >= 100 {
			r.client.Del(ctx, keys...)
			keys = keys[:0]
		}
	}
	if len(keys) > 0 {
		r.client.Del(ctx, keys...)
	}
	if err := it.Err(); err != nil {
		r.logger.Warn("failed to clear cache", "prefix", prefix, "error", err)
	}
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

var _ Backend = (*RedisBackend)(nil)

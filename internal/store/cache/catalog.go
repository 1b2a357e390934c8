package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/abhisek/drillbox/internal/progress"
)

// Backend is a byte-oriented key/value cache. Failures are the backend's
// concern: a miss is reported as ok=false and a failed write is dropped.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	DeletePrefix(ctx context.Context, prefix string)
}

// Catalog is the read side of the question catalog.
type Catalog interface {
	ByTopic(ctx context.Context, topicID *int64, activeOnly bool) ([]progress.Question, error)
	ByID(ctx context.Context, questionID int64) (progress.Question, error)
	Topic(ctx context.Context, topicID int64) (progress.Topic, error)
}

const catalogPrefix = "catalog:"

// CachedCatalog is a read-through cache in front of a Catalog. Errors from
// the underlying catalog, including not-found, are never cached.
type CachedCatalog struct {
	next    Catalog
	backend Backend
	ttl     time.Duration
	logger  *slog.Logger
}

// NewCachedCatalog wraps next. A non-positive ttl selects the Redis default.
func NewCachedCatalog(next Catalog, backend Backend, ttl time.Duration, logger *slog.Logger) *CachedCatalog {
	if ttl <= 0 {
		ttl = DefaultRedisConfig().DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CachedCatalog{next: next, backend: backend, ttl: ttl, logger: logger}
}

func (c *CachedCatalog) ByTopic(ctx context.Context, topicID *int64, activeOnly bool) ([]progress.Question, error) {
	scope := "all"
	if topicID != nil {
		scope = fmt.Sprint(*topicID)
	}
	key := fmt.Sprintf("%squestions:%s:%t", catalogPrefix, scope, activeOnly)
	return readThrough(ctx, c, key, func() ([]progress.Question, error) {
		return c.next.ByTopic(ctx, topicID, activeOnly)
	})
}

func (c *CachedCatalog) ByID(ctx context.Context, questionID int64) (progress.Question, error) {
	key := fmt.Sprintf("%squestion:%d", catalogPrefix, questionID)
	return readThrough(ctx, c, key, func() (progress.Question, error) {
		return c.next.ByID(ctx, questionID)
	})
}

func (c *CachedCatalog) Topic(ctx context.Context, topicID int64) (progress.Topic, error) {
	key := fmt.Sprintf("%stopic:%d", catalogPrefix, topicID)
	return readThrough(ctx, c, key, func() (progress.Topic, error) {
		return c.next.Topic(ctx, topicID)
	})
}

// Invalidate drops every cached catalog entry. Call it after catalog writes.
func (c *CachedCatalog) Invalidate(ctx context.Context) {
	c.backend.DeletePrefix(ctx, catalogPrefix)
}

func readThrough[T any](ctx context.Context, c *CachedCatalog, key string, load func() (T, error)) (T, error) {
	if data, ok := c.backend.Get(ctx, key); ok {
		var v T
		err := json.Unmarshal(data, &v)
		if err == nil {
			return v, nil
		}
		c.logger.Warn("failed to unmarshal cache value", "key", key, "error", err)
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("failed to marshal cache value", "key", key, "error", err)
		return v, nil
	}
	c.backend.Set(ctx, key, data, c.ttl)
	return v, nil
}

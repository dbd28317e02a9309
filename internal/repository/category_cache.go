package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const categoryCacheKey = "catalog:categories"

// CategoryCache holds the category list between reads. Misses and backend
// failures both report ok=false; callers fall through to the repository.
type CategoryCache interface {
	Get(ctx context.Context) ([]domain.Category, bool)
	Set(ctx context.Context, categories []domain.Category)
	Invalidate(ctx context.Context) error
}

type redisCategoryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCategoryCache returns a Redis-backed cache, or a no-op cache when the
// client is nil or ttl is zero.
func NewCategoryCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) CategoryCache {
	if client == nil || ttl <= 0 {
		return NoopCategoryCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisCategoryCache{client: client, ttl: ttl, logger: logger}
}

func (c *redisCategoryCache) Get(ctx context.Context) ([]domain.Category, bool) {
	payload, err := c.client.Get(ctx, categoryCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("category cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var categories []domain.Category
	if err := json.Unmarshal(payload, &categories); err != nil {
		c.logger.Warn("category cache payload invalid", zap.Error(err))
		return nil, false
	}
	return categories, true
}

func (c *redisCategoryCache) Set(ctx context.Context, categories []domain.Category) {
	payload, err := json.Marshal(categories)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, categoryCacheKey, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("category cache write failed", zap.Error(err))
	}
}

func (c *redisCategoryCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, categoryCacheKey).Err()
}

// NoopCategoryCache never stores anything.
type NoopCategoryCache struct{}

func (NoopCategoryCache) Get(context.Context) ([]domain.Category, bool) { return nil, false }
func (NoopCategoryCache) Set(context.Context, []domain.Category)        {}
func (NoopCategoryCache) Invalidate(context.Context) error              { return nil }

package crisisalertdispatch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"crisis-alerts/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "crisis-alerts:dispatch:"

// ResultCache stores dispatch results by idempotency key so a redelivered
// job or a retried HTTP request does not alert twice.
type ResultCache struct {
	client redis.Cmdable
}

func NewResultCache(client redis.Cmdable) *ResultCache {
	return &ResultCache{client: client}
}

func (c *ResultCache) Get(ctx context.Context, key string) (*models.DispatchResult, bool, error) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var result models.DispatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, err
	}
	return &result, true, nil
}

func (c *ResultCache) Set(ctx context.Context, key string, result *models.DispatchResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKeyPrefix+key, data, ttl).Err()
}

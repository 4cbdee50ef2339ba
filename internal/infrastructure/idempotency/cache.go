package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"ledger-api/internal/pkg/logging"
)

// RedisCache is the optional settled-response read-through cache in front
// of the idempotency_records table. It is advisory: a cache miss or Redis
// outage always falls through to the Postgres row lock, it never gates
// correctness.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

type cachedResponseWire struct {
	StatusCode int    `json:"status_code"`
	Body       []byte `json:"body"`
}

func (c *RedisCache) Get(ctx context.Context, key string) (*CachedResponse, bool) {
	raw, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logging.Warn("idempotency cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return nil, false
	}

	var wire cachedResponseWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, false
	}
	return &CachedResponse{StatusCode: wire.StatusCode, Body: wire.Body}, true
}

func (c *RedisCache) Set(ctx context.Context, key string, resp *CachedResponse, ttl time.Duration) {
	raw, err := json.Marshal(cachedResponseWire{StatusCode: resp.StatusCode, Body: resp.Body})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(key), raw, ttl).Err(); err != nil {
		logging.Warn("idempotency cache write failed", map[string]interface{}{"error": err.Error()})
	}
}

func cacheKey(key string) string {
	return "idempotency:" + key
}

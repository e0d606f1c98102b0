package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"pharmaledger/backend/internal/domain"
)

// expiryReportsKey is one hash holding every cached window, so a single DEL
// drops all of them when batch quantities change.
const expiryReportsKey = "pharma:expiry-reports"

type RedisExpiryCache struct {
	client *redis.Client
}

func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisExpiryCache(client *redis.Client) *RedisExpiryCache {
	return &RedisExpiryCache{client: client}
}

func (c *RedisExpiryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisExpiryCache) Get(ctx context.Context, withinDays int) (*domain.ExpiryReport, bool, error) {
	val, err := c.client.HGet(ctx, expiryReportsKey, strconv.Itoa(withinDays)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var report domain.ExpiryReport
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *RedisExpiryCache) Set(ctx context.Context, withinDays int, report *domain.ExpiryReport, ttl time.Duration) error {
	if report == nil {
		return nil
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, expiryReportsKey, strconv.Itoa(withinDays), payload)
	pipe.Expire(ctx, expiryReportsKey, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisExpiryCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, expiryReportsKey).Err()
}

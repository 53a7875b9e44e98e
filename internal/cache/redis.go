package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 10 * time.Minute,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisCache) GetStrings(ctx context.Context, key string) ([]string, error) {
	var values []string
	if err := r.get(ctx, key, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (r *RedisCache) SetStrings(ctx context.Context, key string, values []string) error {
	return r.set(ctx, key, values)
}

func (r *RedisCache) GetIDs(ctx context.Context, key string) ([]int64, error) {
	var ids []int64
	if err := r.get(ctx, key, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *RedisCache) SetIDs(ctx context.Context, key string, ids []int64) error {
	return r.set(ctx, key, ids)
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisCache) get(ctx context.Context, key string, dst any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return nil
}

func (r *RedisCache) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := r.client.Set(ctx, key, data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func RelatedKey(productID int64, limit int) string {
	return fmt.Sprintf("catalog:related:%d:%d", productID, limit)
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * 24 * time.Hour

func NewRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStorage{
		client:  client,
		baseTTL: ttl,
	}
}

// RedisStorage keeps every record as a plain string key with a jittered TTL,
// so abandoned sessions age out instead of expiring in one burst.
type RedisStorage struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisStorage) Get(ctx context.Context, origin, key string) (string, error) {
	value, err := r.client.Get(ctx, recordKey(origin, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return value, nil
}

func (r *RedisStorage) Set(ctx context.Context, origin, key, value string) error {
	jitter := time.Duration(rand.Intn(24)) * time.Hour
	if err := r.client.Set(ctx, recordKey(origin, key), value, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, origin, key string) error {
	if err := r.client.Del(ctx, recordKey(origin, key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

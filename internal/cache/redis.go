package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore implements Store against a networked Redis instance.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0 // no expiry
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *RedisStore) Expire(ctx context.Context, key string, seconds int64) error {
	return s.client.Expire(ctx, key, time.Duration(seconds)*time.Second).Err()
}

func (s *RedisStore) TTL(ctx context.Context, key string) (int64, error) {
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// go-redis passes the -1/-2 sentinels through as raw durations
	if d < 0 {
		return int64(d), nil
	}
	return int64(d / time.Second), nil
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

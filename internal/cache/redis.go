package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig describes the Redis connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Prefix is prepended to every key. Defaults to "vvip:".
	Prefix string
}

// updateRetries bounds optimistic retries in Update.
const updateRetries = 16

// RedisStore keeps entries in Redis, shared by every process pointing at the
// same server. Expiry is Redis's own key TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and checks the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig, _ ...Option) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("cache: redis address is empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: connect redis: %w", err)
	}
	return NewRedisStoreFromClient(client, cfg.Prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "vvip:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(namespace, key string) string {
	return s.prefix + namespace + ":" + key
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, namespace, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.key(namespace, key), value, ttl).Err()
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, namespace, key string) error {
	return s.client.Del(ctx, s.key(namespace, key)).Err()
}

// Update implements Store with WATCH/MULTI, retrying when another writer
// touches the key in between.
func (s *RedisStore) Update(ctx context.Context, namespace, key string, ttl time.Duration, fn UpdateFunc) error {
	k := s.key(namespace, key)
	if ttl < 0 {
		ttl = 0
	}

	txf := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, k).Result()
		found := true
		if errors.Is(err, redis.Nil) {
			old, found = "", false
		} else if err != nil {
			return err
		}

		value, keep, err := fn(old, found)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if keep {
				pipe.Set(ctx, k, value, ttl)
			} else {
				pipe.Del(ctx, k)
			}
			return nil
		})
		return err
	}

	for i := 0; i < updateRetries; i++ {
		err := s.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("cache: update %s: too much contention", k)
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ruvnet/phone-agent-sub000/internal/apperror"
)

// RedisStore is the durable backend, preferred whenever a Redis address
// is configured. Keys are namespaced so multiple deployments can share
// one Redis instance.
type RedisStore struct {
	rdb       *redis.Client
	namespace string
}

// NewRedisStore wraps an existing Redis client. namespace may be empty.
func NewRedisStore(rdb *redis.Client, namespace string) *RedisStore {
	return &RedisStore{rdb: rdb, namespace: namespace}
}

func (s *RedisStore) fullKey(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + ":" + key
}

func (s *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	raw, err := encodeValue(value)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, s.fullKey(key), raw, ttl).Err(); err != nil {
		return apperror.Storage("redis set failed", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (any, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	raw, err := s.rdb.Get(ctx, s.fullKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Storage("redis get failed", err)
	}
	return decodeValue(raw), nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	n, err := s.rdb.Del(ctx, s.fullKey(key)).Result()
	if err != nil {
		return false, apperror.Storage("redis del failed", err)
	}
	return n > 0, nil
}

func (s *RedisStore) ListKeys(ctx context.Context, prefix string, limit int) ([]string, error) {
	match := s.fullKey(prefix) + "*"
	iter := s.rdb.Scan(ctx, 0, match, int64(limit)).Iterator()

	strip := ""
	if s.namespace != "" {
		strip = s.namespace + ":"
	}

	keys := make([]string, 0)
	for iter.Next(ctx) {
		if limit > 0 && len(keys) >= limit {
			break
		}
		keys = append(keys, strings.TrimPrefix(iter.Val(), strip))
	}
	if err := iter.Err(); err != nil {
		return nil, apperror.Storage("redis scan failed", err)
	}
	return keys, nil
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps stores in Redis. Each store is a hash
// (cache:<name>, field = request key, value = JSON entry) and the set
// <namespace>:caches lists the store names.
type RedisStorage struct {
	redis     *redis.Client
	namespace string
}

// NewRedisStorage creates a Redis-backed storage.
func NewRedisStorage(redisClient *redis.Client, namespace string) *RedisStorage {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStorage{
		redis:     redisClient,
		namespace: namespace,
	}
}

func (s *RedisStorage) indexKey() string {
	return s.namespace + ":caches"
}

func hashKey(name string) string {
	return "cache:" + name
}

// Open registers the store name and returns a handle to it.
func (s *RedisStorage) Open(ctx context.Context, name string) (Store, error) {
	if err := s.redis.SAdd(ctx, s.indexKey(), name).Err(); err != nil {
		CacheErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("redis sadd: %w", err)
	}
	return &redisStore{redis: s.redis, name: name}, nil
}

// Names lists registered stores in lexical order.
func (s *RedisStorage) Names(ctx context.Context) ([]string, error) {
	names, err := s.redis.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		CacheErrors.WithLabelValues("names").Inc()
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes the store hash and unregisters it atomically.
func (s *RedisStorage) Remove(ctx context.Context, name string) (bool, error) {
	pipe := s.redis.TxPipeline()
	srem := pipe.SRem(ctx, s.indexKey(), name)
	pipe.Del(ctx, hashKey(name))

	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("remove").Inc()
		return false, fmt.Errorf("remove store %s: %w", name, err)
	}
	return srem.Val() > 0, nil
}

// Ping checks the Redis connection.
func (s *RedisStorage) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

type redisStore struct {
	redis *redis.Client
	name  string
}

func (r *redisStore) Name() string { return r.name }

// Match retrieves an entry by request key.
// Returns ErrCacheMiss if the key doesn't exist.
func (r *redisStore) Match(ctx context.Context, key string) (*Entry, error) {
	data, err := r.redis.HGet(ctx, hashKey(r.name), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(r.name).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis hget: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues(r.name).Inc()
	return &entry, nil
}

// Put stores an entry. Entries do not expire; freshness is decided by the
// caller from the sw-cached-at header.
func (r *redisStore) Put(ctx context.Context, key string, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := r.redis.HSet(ctx, hashKey(r.name), key, data).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis hset: %w", err)
	}

	CacheWrites.WithLabelValues(r.name).Inc()
	CacheBytesWritten.WithLabelValues(r.name).Add(float64(len(data)))
	return nil
}

// Delete removes one entry.
func (r *redisStore) Delete(ctx context.Context, key string) error {
	if err := r.redis.HDel(ctx, hashKey(r.name), key).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

// Keys lists request keys in lexical order.
func (r *redisStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := r.redis.HKeys(ctx, hashKey(r.name)).Result()
	if err != nil {
		CacheErrors.WithLabelValues("keys").Inc()
		return nil, fmt.Errorf("redis hkeys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/learnhub/learning-hub/internal/infrastructure/persistence/kv"
)

// scanBatch is the COUNT hint for SCAN and the MGET batch size.
const scanBatch = 200

// KVStore implements kv.Store with one Redis string per key.
type KVStore struct {
	c *Client
}

var _ kv.Store = (*KVStore)(nil)

// NewKVStore creates a store over c.
func NewKVStore(c *Client) *KVStore {
	return &KVStore{c: c}
}

// Get returns the value at key.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}
	v, err := s.c.rdb.Get(ctx, s.c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get: %w", err)
	}
	return v, nil
}

// Set stores value without expiry.
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrKeyEmpty
	}
	if err := s.c.rdb.Set(ctx, s.c.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis: set: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.c.rdb.Del(ctx, s.c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis: delete: %w", err)
	}
	return nil
}

// GetByPrefix walks SCAN MATCH prefix* and fetches values in MGET batches.
// Keys deleted between the scan and the fetch are skipped.
func (s *KVStore) GetByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	pattern := escapeGlob(s.c.key(prefix)) + "*"
	iter := s.c.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()

	seen := make(map[string]struct{})
	var keys []string
	for iter.Next(ctx) {
		k := iter.Val()
		// SCAN may return a key more than once
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: scan: %w", err)
	}

	vals, err := s.mget(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		if v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

// MultiGet returns values aligned with keys.
func (s *KVStore) MultiGet(ctx context.Context, keys []string) ([][]byte, error) {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.c.key(k)
	}
	return s.mget(ctx, full)
}

// Ping checks Redis.
func (s *KVStore) Ping(ctx context.Context) error {
	return s.c.Ping(ctx)
}

// Close closes the client.
func (s *KVStore) Close() error {
	return s.c.Close()
}

// mget fetches already-namespaced keys.
func (s *KVStore) mget(ctx context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))

		vals, err := s.c.rdb.MGet(ctx, keys[start:end]...).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: mget: %w", err)
		}
		for i, v := range vals {
			if str, ok := v.(string); ok {
				out[start+i] = []byte(str)
			}
		}
	}
	return out, nil
}

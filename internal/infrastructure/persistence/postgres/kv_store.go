package postgres

import (
	"context"
	"fmt"

	"github.com/learnhub/learning-hub/internal/infrastructure/persistence/kv"
)

// KVStore implements kv.Store on the kv_store table. Values are stored as
// jsonb, so they must be valid JSON documents.
type KVStore struct {
	conn *Connection
}

var _ kv.Store = (*KVStore)(nil)

// NewKVStore creates a store over an already migrated connection.
func NewKVStore(conn *Connection) *KVStore {
	return &KVStore{conn: conn}
}

// Get returns the value at key.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	q, err := s.conn.querier()
	if err != nil {
		return nil, err
	}

	var v []byte
	err = q.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&v)
	if IsNoRows(err) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get: %w", err)
	}
	return v, nil
}

// Set upserts key.
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	q, err := s.conn.querier()
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, string(value))
	if err != nil {
		return fmt.Errorf("postgres: set: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	q, err := s.conn.querier()
	if err != nil {
		return err
	}

	if _, err := q.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres: delete: %w", err)
	}
	return nil
}

// GetByPrefix range-scans the primary key.
func (s *KVStore) GetByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	q, err := s.conn.querier()
	if err != nil {
		return nil, err
	}

	sql := `SELECT value FROM kv_store WHERE key >= $1`
	args := []any{prefix}
	if upper, ok := kv.PrefixUpperBound(prefix); ok {
		sql += ` AND key < $2`
		args = append(args, upper)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan prefix: %w", err)
	}
	defer rows.Close()

	out := make([][]byte, 0)
	for rows.Next() {
		var v []byte
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// MultiGet fetches keys with one ANY($1) query and realigns the result.
func (s *KVStore) MultiGet(ctx context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	q, err := s.conn.querier()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `SELECT key, value FROM kv_store WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("postgres: multi-get: %w", err)
	}
	defer rows.Close()

	found := make(map[string][]byte, len(keys))
	for rows.Next() {
		var (
			k string
			v []byte
		)
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		found[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, k := range keys {
		out[i] = found[k]
	}
	return out, nil
}

// Ping checks the pool.
func (s *KVStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Stats reports pool usage.
func (s *KVStore) Stats() map[string]int64 {
	return s.conn.Stats()
}

// Close closes the underlying pool.
func (s *KVStore) Close() error {
	s.conn.Close()
	return nil
}

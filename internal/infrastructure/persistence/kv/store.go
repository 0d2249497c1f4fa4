// Package kv provides the key-value data-access layer every repository is
// built on, plus the in-process backend.
//
// Values are opaque JSON documents. The store offers no transactions and no
// compare-and-swap; callers that read-modify-write take a shared.Locker first.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kv: key not found")

// Store is the contract shared by the memory, SQLite, Postgres and Redis
// backends.
type Store interface {
	// Get returns the value stored at key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error

	// GetByPrefix returns the values of all keys starting with prefix.
	// Order is unspecified.
	GetByPrefix(ctx context.Context, prefix string) ([][]byte, error)

	// MultiGet returns values aligned with keys; absent keys yield nil.
	MultiGet(ctx context.Context, keys []string) ([][]byte, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

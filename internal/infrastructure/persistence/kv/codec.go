package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// getJSON loads and decodes one record. notFound is returned in place of
// ErrNotFound so each repository reports its own domain error.
func getJSON[T any](ctx context.Context, s Store, key string, notFound error) (*T, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}

func setJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// listJSON decodes every record under prefix.
func listJSON[T any](ctx context.Context, s Store, prefix string) ([]*T, error) {
	raws, err := s.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	return decodeAll[T](raws, prefix, false)
}

// multiGetJSON decodes records aligned with keys; absent keys stay nil.
func multiGetJSON[T any](ctx context.Context, s Store, keys []string) ([]*T, error) {
	if len(keys) == 0 {
		return []*T{}, nil
	}
	raws, err := s.MultiGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("multi-get %d keys: %w", len(keys), err)
	}
	return decodeAll[T](raws, "multi-get", true)
}

func decodeAll[T any](raws [][]byte, what string, keepNil bool) ([]*T, error) {
	out := make([]*T, 0, len(raws))
	for _, raw := range raws {
		if raw == nil {
			if keepNil {
				out = append(out, nil)
			}
			continue
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", what, err)
		}
		out = append(out, &v)
	}
	return out, nil
}

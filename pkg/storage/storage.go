// Package storage is the persistent key/value layer behind the token pair and
// the screener configuration. Values are opaque strings; callers serialize.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("storage: key not found")
)

// Store defines persistent key/value operations.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// New builds the backend selected by cfg.Type ("file", "memory" or "redis").
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case "", "file":
		return NewFileStore(cfg.Path)
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(
			WithRedisAddr(cfg.RedisAddr),
			WithRedisPassword(cfg.RedisPassword),
			WithRedisDB(cfg.RedisDB),
			WithRedisPrefix(cfg.RedisPrefix),
		)
	default:
		return nil, fmt.Errorf("storage: unknown type %q", cfg.Type)
	}
}

// GetJSON reads key and unmarshals it into a T.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var out T
	raw, err := s.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return out, nil
}

// SetJSON marshals value and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(b))
}

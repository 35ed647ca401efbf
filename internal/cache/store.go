package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Store is a key-value cache with per-entry expiry.
// A ttl of zero or less stores the entry without expiry.
type Store interface {
	// Get returns the value for key and whether it was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key if present.
	Delete(ctx context.Context, key string) error
	// Clear removes every entry owned by the store.
	Clear(ctx context.Context) error
}

// GetJSON decodes the cached value for key into dst.
// A value that no longer decodes is reported as a miss.
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	data, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, nil
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache value for %s: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}

// Load returns the cached value for key, or calls fn and caches its result.
// Errors from fn are returned and never cached, so a later call retries.
// Store errors are logged and treated as misses; the cache never fails a caller.
func Load[T any](ctx context.Context, s Store, logger *zap.Logger, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	return LoadIf(ctx, s, logger, key, ttl, func(ctx context.Context) (T, bool, error) {
		value, err := fn(ctx)
		return value, true, err
	})
}

// LoadIf is Load for producers that can return a usable but incomplete value.
// The value is cached only when fn reports it as cacheable.
func LoadIf[T any](ctx context.Context, s Store, logger *zap.Logger, key string, ttl time.Duration, fn func(context.Context) (T, bool, error)) (T, error) {
	var cached T
	if s != nil {
		hit, err := GetJSON(ctx, s, key, &cached)
		if err != nil && logger != nil {
			logger.Warn("cache read failed", zap.String("cache_key", key), zap.Error(err))
		}
		if hit {
			if logger != nil {
				logger.Debug("cache hit", zap.String("cache_key", key))
			}
			return cached, nil
		}
	}

	value, cacheable, err := fn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if s == nil {
		return value, nil
	}
	if !cacheable {
		if logger != nil {
			logger.Debug("skipping cache write for incomplete result", zap.String("cache_key", key))
		}
		return value, nil
	}
	if err := SetJSON(ctx, s, key, value, ttl); err != nil && logger != nil {
		logger.Warn("cache write failed", zap.String("cache_key", key), zap.Error(err))
	}
	return value, nil
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidResultType is returned when a cached value cannot be decoded
// into the requested type.
var ErrInvalidResultType = errors.New("cache: cached value does not match the requested type")

// FetchFn is the function signature GetOrFetch expects when fetching from
// the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService is the byte oriented cache port. Backends must be safe for
// concurrent use. A ttl of zero means the backend default.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPrefix removes every key starting with prefix and reports how
	// many were removed.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	Ping(ctx context.Context) error
}

// GetOrFetch is a read-through helper storing values as JSON. Cache
// failures never fail the call: a broken read falls back to fetch and a
// broken write is ignored. Use a Helper when the failures must be logged.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, ttl time.Duration, fetchFn FetchFn[T]) (T, error) {
	if service != nil {
		if data, ok, err := service.Get(ctx, key); err == nil && ok {
			var out T
			if err := json.Unmarshal(data, &out); err == nil {
				return out, nil
			}
		}
	}

	value, err := fetchFn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if service != nil {
		if data, err := json.Marshal(value); err == nil {
			_ = service.Set(ctx, key, data, ttl)
		}
	}
	return value, nil
}

// Decode unmarshals a cached payload into T.
func Decode[T any](data []byte) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return out, errors.Join(ErrInvalidResultType, err)
	}
	return out, nil
}

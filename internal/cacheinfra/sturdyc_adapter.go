package cacheinfra

import (
	"context"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc cache adapter.
type Config struct {
	// Capacity defines the maximum number of entries that the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Must be greater than 0. Default: 256
	NumShards int

	// TTL is the client wide time-to-live. Per entry TTLs passed to Set can
	// only shorten it.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions converts the optional parts of Config to sturdyc options.
// Capacity, NumShards, TTL and EvictionPercentage go to sturdyc.New.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}

	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}

	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// SturdycService is the in process cache backend.
type SturdycService struct {
	client *sturdyc.Client[entry]
	now    func() time.Time
}

// NewSturdycService validates cfg and builds a sturdyc backed cache.
func NewSturdycService(cfg Config) (*SturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[entry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &SturdycService{client: client, now: time.Now}, nil
}

// Get returns the value for key. Entries past their own TTL are treated as
// missing and removed.
func (s *SturdycService) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, ok := s.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	if e.expired(s.now()) {
		s.client.Delete(key)
		return nil, false, nil
	}
	return e.data, true, nil
}

// Set stores value. A positive ttl shorter than the client TTL expires the
// entry early.
func (s *SturdycService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{data: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.client.Set(key, e)
	return nil
}

// Delete removes the given keys.
func (s *SturdycService) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		s.client.Delete(key)
	}
	return nil
}

// DeleteByPrefix removes all entries whose key starts with prefix.
func (s *SturdycService) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	removed := 0
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
			removed++
		}
	}
	return removed, nil
}

// Ping always succeeds for the in process backend.
func (s *SturdycService) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Size reports the number of stored entries.
func (s *SturdycService) Size() int {
	return s.client.Size()
}

package cacheinfra

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int

	// KeyPrefix namespaces every key written by this process.
	KeyPrefix string

	// DefaultTTL applies when Set is called with a zero ttl. Zero keeps
	// entries until they are deleted.
	DefaultTTL time.Duration

	// ScanCount is the COUNT hint used while scanning for prefix deletes.
	ScanCount int64
}

// Validate checks if the configuration values are valid.
func (c RedisConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return &ConfigError{Field: "Redis.Addr", Message: "must not be empty"}
	}
	if c.DB < 0 {
		return &ConfigError{Field: "Redis.DB", Message: "must be non-negative"}
	}
	if c.DefaultTTL < 0 {
		return &ConfigError{Field: "Redis.DefaultTTL", Message: "must be non-negative"}
	}
	return nil
}

// RedisService is the shared cache backend.
type RedisService struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
	scanCount  int64
}

// NewRedisService connects to redis with cfg. The connection is lazy, use
// Ping to verify it.
func NewRedisService(cfg RedisConfig) (*RedisService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return NewRedisServiceWithClient(client, cfg), nil
}

// NewRedisServiceWithClient wraps an existing client.
func NewRedisServiceWithClient(client redis.UniversalClient, cfg RedisConfig) *RedisService {
	count := cfg.ScanCount
	if count <= 0 {
		count = 100
	}
	return &RedisService{
		client:     client,
		prefix:     cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
		scanCount:  count,
	}
}

func (s *RedisService) key(k string) string {
	return s.prefix + k
}

// Get returns the value for key.
func (s *RedisService) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores value with ttl, or the default TTL when ttl is zero.
func (s *RedisService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

// Delete removes the given keys.
func (s *RedisService) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	return s.client.Del(ctx, full...).Err()
}

// DeleteByPrefix scans for keys under prefix and deletes them in batches.
func (s *RedisService) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	match := escapeGlob(s.key(prefix)) + "*"
	iter := s.client.Scan(ctx, 0, match, s.scanCount).Iterator()

	removed := 0
	batch := make([]string, 0, s.scanCount)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if int64(len(batch)) >= s.scanCount {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	if err := flush(); err != nil {
		return removed, err
	}
	return removed, nil
}

// Ping checks the connection.
func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client connections.
func (s *RedisService) Close() error {
	return s.client.Close()
}

// escapeGlob escapes the characters SCAN MATCH treats as patterns.
func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

package cache

import (
	"fmt"
	"time"

	"github.com/goliatone/go-crud-service/internal/cacheinfra"
)

// Backends supported by NewCacheService.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	// Backend is either "memory" (in process) or "redis".
	Backend string

	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration

	Redis RedisConfig

	// Timeouts are the TTL presets services pick from.
	Timeouts Timeouts
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// Timeouts groups the TTL presets used by services.
type Timeouts struct {
	Short    time.Duration
	Medium   time.Duration
	Long     time.Duration
	VeryLong time.Duration
}

// DefaultTimeouts returns one minute, five minutes, one day and thirty days.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Short:    time.Minute,
		Medium:   5 * time.Minute,
		Long:     24 * time.Hour,
		VeryLong: 30 * 24 * time.Hour,
	}
}

// DefaultConfig returns an in-memory Config populated with sensible defaults.
func DefaultConfig() Config {
	cfg := convertFromInternal(cacheinfra.DefaultConfig())
	cfg.Backend = BackendMemory
	cfg.Redis = RedisConfig{Addr: "localhost:6379"}
	cfg.Timeouts = DefaultTimeouts()
	return cfg
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	switch c.Backend {
	case "", BackendMemory:
		return c.toInternal().Validate()
	case BackendRedis:
		return c.toRedisInternal().Validate()
	default:
		return &cacheinfra.ConfigError{Field: "Backend", Message: fmt.Sprintf("unknown backend %q", c.Backend)}
	}
}

// NewCacheService constructs the configured cache backend.
func NewCacheService(cfg Config) (CacheService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == BackendRedis {
		svc, err := cacheinfra.NewRedisService(cfg.toRedisInternal())
		if err != nil {
			return nil, err
		}
		return svc, nil
	}

	svc, err := cacheinfra.NewSturdycService(cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func (c Config) toRedisInternal() cacheinfra.RedisConfig {
	return cacheinfra.RedisConfig{
		Addr:       c.Redis.Addr,
		Username:   c.Redis.Username,
		Password:   c.Redis.Password,
		DB:         c.Redis.DB,
		KeyPrefix:  c.Redis.KeyPrefix,
		DefaultTTL: c.TTL,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	return Config{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
	}
}

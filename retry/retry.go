// Package retry runs an operation again with exponential backoff until it
// succeeds, fails permanently or the attempts run out.
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Config bounds the retries.
type Config struct {
	// MaxAttempts counts the first call. Values below one mean one.
	MaxAttempts uint64
	BaseDelay   time.Duration
	// MaxDelay caps a single wait. Zero means no cap.
	MaxDelay time.Duration
	// ShouldRetry reports whether err is transient. Nil retries every error.
	ShouldRetry func(err error) bool
	// OnRetry runs before each wait with the attempt that just failed.
	OnRetry func(attempt uint64, err error)
}

// DefaultConfig is three attempts starting at 100ms.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}
}

func (c Config) backoff() goretry.Backoff {
	base := c.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	b := goretry.NewExponential(base)
	if c.MaxDelay > 0 {
		b = goretry.WithCappedDuration(c.MaxDelay, b)
	}
	retries := uint64(0)
	if c.MaxAttempts > 1 {
		retries = c.MaxAttempts - 1
	}
	return goretry.WithMaxRetries(retries, b)
}

// Do calls fn until it returns nil. The last error is returned unchanged.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	var attempt uint64
	return goretry.Do(ctx, cfg.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			return err
		}
		if attempt < max(cfg.MaxAttempts, 1) && cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		return goretry.RetryableError(err)
	})
}

// DoValue is Do for operations returning a value.
func DoValue[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

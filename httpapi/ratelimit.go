package httpapi

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/puzpuzpuz/xsync/v3"
)

// Rate limit response headers.
const (
	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRateReset     = "X-RateLimit-Reset"
	HeaderRetryAfter    = "Retry-After"
)

// RateLimitConfig configures a fixed window limiter.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// AllowList holds path prefixes that are never limited.
	AllowList []string
	// Verifier keys callers by account when their bearer token verifies.
	// Without it, or for tokens that fail, callers are keyed by client IP.
	Verifier TokenVerifier
}

type window struct {
	start time.Time
	count int
}

// RateLimiter counts requests per caller in fixed windows. Callers are keyed
// by verified account, otherwise by client IP.
type RateLimiter struct {
	cfg     RateLimitConfig
	buckets *xsync.MapOf[string, window]
	now     func() time.Time
}

// NewRateLimiter returns a limiter. A non positive Max disables limiting.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &RateLimiter{
		cfg:     cfg,
		buckets: xsync.NewMapOf[string, window](),
		now:     time.Now,
	}
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Duration
}

// Allow counts one request for key.
func (r *RateLimiter) Allow(key string) Decision {
	now := r.now()
	w, _ := r.buckets.Compute(key, func(old window, loaded bool) (window, bool) {
		if !loaded || now.Sub(old.start) >= r.cfg.Window {
			return window{start: now, count: 1}, false
		}
		old.count++
		return old, false
	})

	remaining := r.cfg.Max - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   w.count <= r.cfg.Max,
		Limit:     r.cfg.Max,
		Remaining: remaining,
		Reset:     w.start.Add(r.cfg.Window).Sub(now),
	}
}

// Sweep drops windows that already expired and returns how many it removed.
func (r *RateLimiter) Sweep() int {
	now := r.now()
	removed := 0
	r.buckets.Range(func(key string, w window) bool {
		if now.Sub(w.start) >= r.cfg.Window {
			r.buckets.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Run sweeps expired windows once per window until ctx is done.
func (r *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *RateLimiter) allowListed(path string) bool {
	for _, prefix := range r.cfg.AllowList {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (r *RateLimiter) keyOf(c *gin.Context) string {
	if token := BearerToken(c); token != "" && r.cfg.Verifier != nil {
		if acc, err := r.cfg.Verifier.Verify(token); err == nil && acc != nil {
			return "account:" + acc.ID
		}
	}
	return "ip:" + c.ClientIP()
}

// Middleware enforces the limit. Exceeding requests fail with a 429 status
// error which the filter resolves to TooManyRequests.
func (r *RateLimiter) Middleware(filter *ErrorFilter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.cfg.Max <= 0 || r.allowListed(c.Request.URL.Path) {
			c.Next()
			return
		}

		d := r.Allow(r.keyOf(c))
		resetSeconds := int(math.Ceil(d.Reset.Seconds()))
		c.Header(HeaderRateLimit, strconv.Itoa(d.Limit))
		c.Header(HeaderRateRemaining, strconv.Itoa(d.Remaining))
		c.Header(HeaderRateReset, strconv.Itoa(resetSeconds))

		if !d.Allowed {
			c.Header(HeaderRetryAfter, strconv.Itoa(resetSeconds))
			filter.Respond(c, NewStatusError(http.StatusTooManyRequests,
				fmt.Sprintf("Rate limit exceeded, retry in %d seconds", resetSeconds)))
			return
		}
		c.Next()
	}
}

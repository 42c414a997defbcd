package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Helper derives keys for one model alias and performs best effort reads,
// writes and invalidations. Every cache failure is logged and swallowed.
// A nil Helper, or one without a backend, degrades to calling the source
// directly.
type Helper struct {
	service CacheService
	model   string
	ttl     time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

// HelperOption customizes a Helper.
type HelperOption func(*Helper)

// WithTTL sets the TTL for entries written by the helper.
func WithTTL(ttl time.Duration) HelperOption {
	return func(h *Helper) {
		h.ttl = ttl
	}
}

// WithLogger sets the logger used to report swallowed failures.
func WithLogger(logger *slog.Logger) HelperOption {
	return func(h *Helper) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics records hits, misses and invalidations.
func WithMetrics(m *Metrics) HelperOption {
	return func(h *Helper) {
		h.metrics = m
	}
}

// NewHelper returns a helper for model backed by service.
func NewHelper(service CacheService, model string, opts ...HelperOption) *Helper {
	h := &Helper{
		service: service,
		model:   model,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "cache", "model", model)
	return h
}

// Enabled reports whether a backend is attached.
func (h *Helper) Enabled() bool {
	return h != nil && h.service != nil
}

// Model returns the model alias.
func (h *Helper) Model() string {
	if h == nil {
		return ""
	}
	return h.model
}

// ListKey returns the key for a list query of subject.
func (h *Helper) ListKey(subject string, params any) string {
	return BuildKey(Key{Model: h.Model(), Op: OpList, Subject: subject, Params: params})
}

// OneKey returns the key for a single record lookup of subject.
func (h *Helper) OneKey(subject string, params any) string {
	return BuildKey(Key{Model: h.Model(), Op: OpOne, Subject: subject, Params: params})
}

// Get reads and decodes key into dest. It reports false on a miss or on
// any failure.
func (h *Helper) Get(ctx context.Context, key string, dest any) bool {
	if !h.Enabled() {
		return false
	}

	data, ok, err := h.service.Get(ctx, key)
	if err != nil {
		h.metrics.lookup(h.model, ResultError)
		h.logger.WarnContext(ctx, "cache get failed", "key", key, "error", err)
		return false
	}
	if !ok {
		h.metrics.lookup(h.model, ResultMiss)
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		h.metrics.lookup(h.model, ResultError)
		h.logger.WarnContext(ctx, "cache decode failed", "key", key, "error", err)
		h.delete(ctx, key)
		return false
	}

	h.metrics.lookup(h.model, ResultHit)
	return true
}

// Set encodes and stores value under key.
func (h *Helper) Set(ctx context.Context, key string, value any) {
	if !h.Enabled() {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		h.logger.WarnContext(ctx, "cache encode failed", "key", key, "error", err)
		return
	}
	if err := h.service.Set(ctx, key, data, h.ttl); err != nil {
		h.logger.WarnContext(ctx, "cache set failed", "key", key, "error", err)
	}
}

// Fetch reads key through the helper, calling fetchFn on a miss and
// caching its result.
func Fetch[T any](ctx context.Context, h *Helper, key string, fetchFn FetchFn[T]) (T, error) {
	var cached T
	if h.Get(ctx, key, &cached) {
		return cached, nil
	}

	value, err := fetchFn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	h.Set(ctx, key, value)
	return value, nil
}

// InvalidateList drops every list entry of subject. An empty subject drops
// the list entries of every subject.
func (h *Helper) InvalidateList(ctx context.Context, subject string) {
	h.invalidateKey(ctx, BuildKey(Key{Model: h.Model(), Op: OpList, Subject: subject}))
}

// InvalidateOne drops the single record entries of subject. When params is
// nil every variant of the subject is dropped.
func (h *Helper) InvalidateOne(ctx context.Context, subject string, params any) {
	h.invalidateKey(ctx, h.OneKey(subject, params))
}

// InvalidateSubject drops both list and single entries of subject.
func (h *Helper) InvalidateSubject(ctx context.Context, subject string) {
	h.InvalidateList(ctx, subject)
	h.InvalidateOne(ctx, subject, nil)
}

// InvalidateAll drops every entry of the model alias.
func (h *Helper) InvalidateAll(ctx context.Context) {
	h.invalidateKey(ctx, h.Model())
}

// invalidateKey removes key itself and every key nested under it. Matching
// on key+":" keeps "u1" from sweeping "u10".
func (h *Helper) invalidateKey(ctx context.Context, key string) {
	if !h.Enabled() || key == "" {
		return
	}

	h.delete(ctx, key)
	n, err := h.service.DeleteByPrefix(ctx, prefixPattern(key))
	if err != nil {
		h.logger.WarnContext(ctx, "cache invalidation failed", "prefix", key, "error", err)
		return
	}
	h.metrics.invalidated(h.model, n)
	h.logger.DebugContext(ctx, "cache invalidated", "prefix", key, "removed", n)
}

func (h *Helper) delete(ctx context.Context, key string) {
	if err := h.service.Delete(ctx, key); err != nil {
		h.logger.WarnContext(ctx, "cache delete failed", "key", key, "error", err)
	}
}

package cachedstore

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-crud-service/cache"
	"github.com/goliatone/go-crud-service/internal/naming"
	"github.com/goliatone/go-crud-service/logging"
	"github.com/goliatone/go-crud-service/query"
	"github.com/goliatone/go-crud-service/service"
)

// Read operations, used as the key op segment.
const (
	opFindOne = "findOne"
	opFind    = "find"
	opCount   = "count"
	opExists  = "exists"
)

var _ service.Store[struct{}] = (*Store[struct{}])(nil)

type keySet = *xsync.MapOf[string, struct{}]

// Store is a service.Store that caches the reads of the wrapped store.
type Store[T any] struct {
	base      service.Store[T]
	cache     cache.CacheService
	namespace string
	ttl       time.Duration
	logger    *slog.Logger

	keys *xsync.MapOf[string, struct{}]
	tags *xsync.MapOf[string, keySet]
}

// Option configures a Store.
type Option func(*options)

type options struct {
	namespace string
	ttl       time.Duration
	logger    *slog.Logger
}

// WithNamespace sets the key prefix. It defaults to the snake case type name
// followed by "_store".
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithTTL sets the entry TTL. Zero uses the backend default.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New wraps base. A nil backend disables caching and every call passes
// through.
func New[T any](base service.Store[T], backend cache.CacheService, opts ...Option) *Store[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.namespace == "" {
		o.namespace = naming.ToSnake(reflect.TypeOf((*T)(nil)).Elem().Name()) + "_store"
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}

	return &Store[T]{
		base:      base,
		cache:     backend,
		namespace: o.namespace,
		ttl:       o.ttl,
		logger:    o.logger,
		keys:      xsync.NewMapOf[string, struct{}](),
		tags:      xsync.NewMapOf[string, keySet](),
	}
}

// Namespace returns the key prefix.
func (s *Store[T]) Namespace() string {
	return s.namespace
}

// Tracked returns the number of keys currently tracked.
func (s *Store[T]) Tracked() int {
	return s.keys.Size()
}

func (s *Store[T]) key(op string, params any) string {
	return cache.BuildKey(cache.Key{Model: s.namespace, Op: op, Params: params})
}

func (s *Store[T]) track(ctx context.Context, key string) {
	s.keys.Store(key, struct{}{})
	for _, tag := range cacheTags(ctx) {
		set, _ := s.tags.LoadOrCompute(tag, func() keySet {
			return xsync.NewMapOf[string, struct{}]()
		})
		set.Store(key, struct{}{})
	}
}

func read[T, R any](ctx context.Context, s *Store[T], key string, fetch cache.FetchFn[R]) (R, error) {
	if s.cache == nil {
		return fetch(ctx)
	}
	s.track(ctx, key)
	return cache.GetOrFetch(ctx, s.cache, key, s.ttl, fetch)
}

type findParams struct {
	Filter query.Filter        `json:"filter"`
	Opts   service.FindOptions `json:"opts"`
}

func (s *Store[T]) FindOne(ctx context.Context, filter query.Filter, opts service.FindOptions) (*T, error) {
	return read(ctx, s, s.key(opFindOne, findParams{filter, opts}), func(ctx context.Context) (*T, error) {
		return s.base.FindOne(ctx, filter, opts)
	})
}

func (s *Store[T]) Find(ctx context.Context, filter query.Filter, opts service.FindOptions) ([]T, error) {
	return read(ctx, s, s.key(opFind, findParams{filter, opts}), func(ctx context.Context) ([]T, error) {
		return s.base.Find(ctx, filter, opts)
	})
}

func (s *Store[T]) Count(ctx context.Context, filter query.Filter) (int, error) {
	return read(ctx, s, s.key(opCount, filter), func(ctx context.Context) (int, error) {
		return s.base.Count(ctx, filter)
	})
}

func (s *Store[T]) Exists(ctx context.Context, filter query.Filter) (bool, error) {
	return read(ctx, s, s.key(opExists, filter), func(ctx context.Context) (bool, error) {
		return s.base.Exists(ctx, filter)
	})
}

func (s *Store[T]) Insert(ctx context.Context, record *T) (*T, error) {
	out, err := s.base.Insert(ctx, record)
	if err == nil {
		s.InvalidateAll(ctx)
	}
	return out, err
}

func (s *Store[T]) UpdateOne(ctx context.Context, filter query.Filter, draft *T, columns []string) (*T, error) {
	out, err := s.base.UpdateOne(ctx, filter, draft, columns)
	if err == nil && out != nil {
		s.InvalidateAll(ctx)
	}
	return out, err
}

func (s *Store[T]) UpdateMany(ctx context.Context, filter query.Filter, draft *T, columns []string) (service.BulkResult, error) {
	res, err := s.base.UpdateMany(ctx, filter, draft, columns)
	if err == nil && res.Affected > 0 {
		s.InvalidateAll(ctx)
	}
	return res, err
}

func (s *Store[T]) DeleteOne(ctx context.Context, filter query.Filter) (*T, error) {
	out, err := s.base.DeleteOne(ctx, filter)
	if err == nil && out != nil {
		s.InvalidateAll(ctx)
	}
	return out, err
}

func (s *Store[T]) DeleteMany(ctx context.Context, filter query.Filter) (service.BulkResult, error) {
	res, err := s.base.DeleteMany(ctx, filter)
	if err == nil && res.Affected > 0 {
		s.InvalidateAll(ctx)
	}
	return res, err
}

// InvalidateAll drops every tracked key.
func (s *Store[T]) InvalidateAll(ctx context.Context) {
	var keys []string
	s.keys.Range(func(k string, _ struct{}) bool {
		keys = append(keys, k)
		return true
	})
	s.drop(ctx, keys)
	s.tags.Clear()
}

// InvalidateTags drops the keys recorded under tags.
func (s *Store[T]) InvalidateTags(ctx context.Context, tags ...string) {
	var keys []string
	for _, tag := range tags {
		set, ok := s.tags.LoadAndDelete(tag)
		if !ok {
			continue
		}
		set.Range(func(k string, _ struct{}) bool {
			keys = append(keys, k)
			return true
		})
	}
	s.drop(ctx, keys)
}

func (s *Store[T]) drop(ctx context.Context, keys []string) {
	if s.cache == nil || len(keys) == 0 {
		return
	}
	for _, k := range keys {
		s.keys.Delete(k)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed",
			"namespace", s.namespace,
			"keys", len(keys),
			"error", err,
		)
	}
}

package service

import (
	"context"
	"strings"

	"github.com/goliatone/go-crud-service/apperror"
	"github.com/goliatone/go-crud-service/cache"
	"github.com/goliatone/go-crud-service/query"
)

// CodeSubjectRequired rejects a cached read without a subject. Writes only
// invalidate the subjects of the records they touch, so an entry stored
// without one would never be dropped.
const CodeSubjectRequired = "CACHE.SUBJECT_REQUIRED"

// Cached serves reads through the alias cache. Without a cache helper the
// reads go straight to the store.
type Cached[T any] struct {
	c *core[T]
}

// CacheHelper returns the helper in use, which may be nil.
func (cs *Cached[T]) CacheHelper() *cache.Helper {
	return cs.c.cache
}

// CachedList is List keyed by subject and the specification.
func (cs *Cached[T]) CachedList(ctx context.Context, subject string, spec query.Specification, opts Options) ([]T, error) {
	if err := requireSubject(subject); err != nil {
		return nil, err
	}
	key := cs.c.cache.ListKey(subject, spec.Params())
	return cache.Fetch(ctx, cs.c.cache, key, func(ctx context.Context) ([]T, error) {
		return (&Lister[T]{c: cs.c}).List(ctx, spec, opts)
	})
}

// CachedListPaginate is ListPaginate keyed by subject and the specification.
func (cs *Cached[T]) CachedListPaginate(ctx context.Context, subject string, spec query.Specification, opts Options) (Page[T], error) {
	if err := requireSubject(subject); err != nil {
		return Page[T]{}, err
	}
	spec.Page, spec.Limit = cs.c.pagination.Normalize(spec.Page, spec.Limit)
	key := cs.c.cache.ListKey(subject, spec.Params())
	return cache.Fetch(ctx, cs.c.cache, key, func(ctx context.Context) (Page[T], error) {
		return (&Lister[T]{c: cs.c}).ListPaginate(ctx, spec, opts)
	})
}

// CachedGetByID is GetByID keyed by subject and id. Misses are not cached.
func (cs *Cached[T]) CachedGetByID(ctx context.Context, subject string, id any, opts Options) (*T, error) {
	if err := requireSubject(subject); err != nil {
		return nil, err
	}
	params := map[string]any{"id": id}
	if len(opts.Select) > 0 {
		params["select"] = opts.Select
	}
	key := cs.c.cache.OneKey(subject, params)
	record, err := cache.Fetch(ctx, cs.c.cache, key, func(ctx context.Context) (*T, error) {
		return (&Reader[T]{c: cs.c}).GetByID(ctx, id, Options{Select: opts.Select, Lean: opts.Lean})
	})
	if err != nil {
		if opts.SkipThrow && apperror.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func requireSubject(subject string) error {
	if strings.TrimSpace(subject) != "" {
		return nil
	}
	return apperror.Validation([]apperror.Violation{{
		Field:       "subject",
		Constraints: map[string]string{"required": CodeSubjectRequired},
	}})
}

// InvalidateSubject drops the cached entries of subject.
func (cs *Cached[T]) InvalidateSubject(ctx context.Context, subject string) {
	cs.c.cache.InvalidateSubject(ctx, subject)
}

// InvalidateAll drops every cached entry of the alias.
func (cs *Cached[T]) InvalidateAll(ctx context.Context) {
	cs.c.cache.InvalidateAll(ctx)
}

package service

import (
	"context"

	"github.com/goliatone/go-crud-service/query"
)

// FindPlan is what a listing runs against the store.
type FindPlan struct {
	Filter query.Filter
	Select []string
	Sort   query.Sort
	Limit  int
	Offset int
}

// NewFindPlan derives the default plan for spec: the translated filter with
// the search group, the requested sort and the page window.
func NewFindPlan(t *query.Translator, spec query.Specification) FindPlan {
	if t == nil {
		t = query.NewTranslator()
	}
	return FindPlan{
		Filter: t.TranslateSpec(spec),
		Sort:   spec.Sort,
		Limit:  spec.Limit,
		Offset: spec.Skip(),
	}
}

// Hooks customise the lifecycle of each operation. A nil hook keeps the
// default behaviour: PreCreate, PostCreate, PreUpdateOne and PostUpdateOne
// fall back to the shared create-or-update hooks, the rest pass their input
// through unchanged.
type Hooks[T any] struct {
	PreCreateOrUpdate  func(ctx context.Context, draft, existing *T, opts Options) (*T, error)
	PostCreateOrUpdate func(ctx context.Context, record, draft, existing *T, opts Options) (*T, error)

	PreCreate  func(ctx context.Context, draft *T, opts Options) (*T, error)
	PostCreate func(ctx context.Context, record, draft *T, opts Options) (*T, error)

	PreUpdateOne  func(ctx context.Context, existing, draft *T, opts Options) (*T, error)
	PostUpdateOne func(ctx context.Context, updated, previous, draft *T, opts Options) (*T, error)

	PreUpdateBy  func(ctx context.Context, filter query.Filter, draft *T, opts Options) (*T, error)
	PostUpdateBy func(ctx context.Context, result BulkResult, draft *T, opts Options) (BulkResult, error)

	PreDeleteOne  func(ctx context.Context, filter query.Filter, opts Options) error
	PostDeleteOne func(ctx context.Context, record *T, filter query.Filter, opts Options) (*T, error)

	PreDeleteBy  func(ctx context.Context, filter query.Filter, opts Options) error
	PostDeleteBy func(ctx context.Context, result BulkResult, filter query.Filter, opts Options) (BulkResult, error)

	PreFindAll  func(ctx context.Context, spec query.Specification, opts Options) (FindPlan, error)
	PostFindAll func(ctx context.Context, records []T, spec query.Specification, opts Options) ([]T, error)
}

func (c *core[T]) preCreateOrUpdate(ctx context.Context, draft, existing *T, opts Options) (*T, error) {
	if c.hooks.PreCreateOrUpdate != nil {
		return c.hooks.PreCreateOrUpdate(ctx, draft, existing, opts)
	}
	return draft, nil
}

func (c *core[T]) postCreateOrUpdate(ctx context.Context, record, draft, existing *T, opts Options) (*T, error) {
	if c.hooks.PostCreateOrUpdate != nil {
		return c.hooks.PostCreateOrUpdate(ctx, record, draft, existing, opts)
	}
	return record, nil
}

func (c *core[T]) preCreate(ctx context.Context, draft *T, opts Options) (*T, error) {
	if c.hooks.PreCreate != nil {
		return c.hooks.PreCreate(ctx, draft, opts)
	}
	return c.preCreateOrUpdate(ctx, draft, nil, opts)
}

func (c *core[T]) postCreate(ctx context.Context, record, draft *T, opts Options) (*T, error) {
	if c.hooks.PostCreate != nil {
		return c.hooks.PostCreate(ctx, record, draft, opts)
	}
	return c.postCreateOrUpdate(ctx, record, draft, nil, opts)
}

func (c *core[T]) preUpdateOne(ctx context.Context, existing, draft *T, opts Options) (*T, error) {
	if c.hooks.PreUpdateOne != nil {
		return c.hooks.PreUpdateOne(ctx, existing, draft, opts)
	}
	return c.preCreateOrUpdate(ctx, draft, existing, opts)
}

func (c *core[T]) postUpdateOne(ctx context.Context, updated, previous, draft *T, opts Options) (*T, error) {
	if c.hooks.PostUpdateOne != nil {
		return c.hooks.PostUpdateOne(ctx, updated, previous, draft, opts)
	}
	return c.postCreateOrUpdate(ctx, updated, draft, previous, opts)
}

func (c *core[T]) preUpdateBy(ctx context.Context, filter query.Filter, draft *T, opts Options) (*T, error) {
	if c.hooks.PreUpdateBy != nil {
		return c.hooks.PreUpdateBy(ctx, filter, draft, opts)
	}
	return draft, nil
}

func (c *core[T]) postUpdateBy(ctx context.Context, result BulkResult, draft *T, opts Options) (BulkResult, error) {
	if c.hooks.PostUpdateBy != nil {
		return c.hooks.PostUpdateBy(ctx, result, draft, opts)
	}
	return result, nil
}

func (c *core[T]) preDeleteOne(ctx context.Context, filter query.Filter, opts Options) error {
	if c.hooks.PreDeleteOne != nil {
		return c.hooks.PreDeleteOne(ctx, filter, opts)
	}
	return nil
}

func (c *core[T]) postDeleteOne(ctx context.Context, record *T, filter query.Filter, opts Options) (*T, error) {
	if c.hooks.PostDeleteOne != nil {
		return c.hooks.PostDeleteOne(ctx, record, filter, opts)
	}
	return record, nil
}

func (c *core[T]) preDeleteBy(ctx context.Context, filter query.Filter, opts Options) error {
	if c.hooks.PreDeleteBy != nil {
		return c.hooks.PreDeleteBy(ctx, filter, opts)
	}
	return nil
}

func (c *core[T]) postDeleteBy(ctx context.Context, result BulkResult, filter query.Filter, opts Options) (BulkResult, error) {
	if c.hooks.PostDeleteBy != nil {
		return c.hooks.PostDeleteBy(ctx, result, filter, opts)
	}
	return result, nil
}

func (c *core[T]) preFindAll(ctx context.Context, spec query.Specification, opts Options) (FindPlan, error) {
	if c.hooks.PreFindAll != nil {
		return c.hooks.PreFindAll(ctx, spec, opts)
	}
	return NewFindPlan(c.translator, spec), nil
}

func (c *core[T]) postFindAll(ctx context.Context, records []T, spec query.Specification, opts Options) ([]T, error) {
	if c.hooks.PostFindAll != nil {
		return c.hooks.PostFindAll(ctx, records, spec, opts)
	}
	return records, nil
}

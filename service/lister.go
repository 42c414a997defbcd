package service

import (
	"context"

	"github.com/goliatone/go-crud-service/query"
	"github.com/goliatone/go-crud-service/reqctx"
)

// Lister runs collection reads.
type Lister[T any] struct {
	c *core[T]
}

// List returns every record matching spec, ignoring its page window.
func (l *Lister[T]) List(ctx context.Context, spec query.Specification, opts Options) ([]T, error) {
	reqctx.AddWaypoint(ctx, reqctx.Service)

	plan, err := l.plan(ctx, spec, opts)
	if err != nil {
		return nil, err
	}

	records, err := l.c.store.Find(ctx, plan.Filter, l.findOptions(plan, opts, false))
	if err != nil {
		return nil, err
	}
	return l.post(ctx, records, spec, opts)
}

// ListPaginate returns one page of records matching spec. The count and the
// page are read with two queries, so Total may be stale relative to Data
// under concurrent writes.
func (l *Lister[T]) ListPaginate(ctx context.Context, spec query.Specification, opts Options) (Page[T], error) {
	reqctx.AddWaypoint(ctx, reqctx.Service)

	spec.Page, spec.Limit = l.c.pagination.Normalize(spec.Page, spec.Limit)

	plan, err := l.plan(ctx, spec, opts)
	if err != nil {
		return Page[T]{}, err
	}

	total, err := l.c.store.Count(ctx, plan.Filter)
	if err != nil {
		return Page[T]{}, err
	}

	records, err := l.c.store.Find(ctx, plan.Filter, l.findOptions(plan, opts, true))
	if err != nil {
		return Page[T]{}, err
	}
	if records, err = l.post(ctx, records, spec, opts); err != nil {
		return Page[T]{}, err
	}

	return NewPage(records, total, spec.Page, spec.Limit), nil
}

// Count returns how many records match criteria.
func (l *Lister[T]) Count(ctx context.Context, criteria map[string]any) (int, error) {
	return l.c.store.Count(ctx, l.c.filterOf(criteria))
}

func (l *Lister[T]) plan(ctx context.Context, spec query.Specification, opts Options) (FindPlan, error) {
	if opts.SkipHooks {
		return NewFindPlan(l.c.translator, spec), nil
	}
	return l.c.preFindAll(ctx, spec, opts)
}

func (l *Lister[T]) post(ctx context.Context, records []T, spec query.Specification, opts Options) ([]T, error) {
	if opts.SkipHooks {
		return records, nil
	}
	return l.c.postFindAll(ctx, records, spec, opts)
}

func (l *Lister[T]) findOptions(plan FindPlan, opts Options, paged bool) FindOptions {
	fo := FindOptions{
		Sort:   plan.Sort,
		Select: plan.Select,
		Lean:   opts.Lean,
	}
	if len(opts.Select) > 0 {
		fo.Select = opts.Select
	}
	if len(fo.Sort) == 0 {
		fo.Sort = l.c.defaultSort
	}
	if paged {
		fo.Limit = plan.Limit
		fo.Offset = plan.Offset
	}
	return fo
}

package service

import (
	"context"

	"github.com/goliatone/go-crud-service/query"
	"github.com/goliatone/go-crud-service/reqctx"
)

// Deleter removes records.
type Deleter[T any] struct {
	c *core[T]
}

// DeleteOneBy removes the first record matching criteria and returns it. A
// missing record yields nil without an error.
func (d *Deleter[T]) DeleteOneBy(ctx context.Context, criteria map[string]any, opts Options) (*T, error) {
	return d.deleteOne(ctx, d.c.filterOf(criteria), opts)
}

// DeleteByID removes the record with the given primary key.
func (d *Deleter[T]) DeleteByID(ctx context.Context, id any, opts Options) (*T, error) {
	return d.deleteOne(ctx, d.c.byID(id), opts)
}

func (d *Deleter[T]) deleteOne(ctx context.Context, filter query.Filter, opts Options) (*T, error) {
	reqctx.AddWaypoint(ctx, reqctx.Service)

	if !opts.SkipHooks {
		if err := d.c.preDeleteOne(ctx, filter, opts); err != nil {
			return nil, err
		}
	}

	deleted, err := d.c.store.DeleteOne(ctx, filter)
	if err != nil {
		return nil, err
	}
	if deleted != nil {
		d.c.invalidate(ctx, deleted)
	}

	if opts.SkipHooks {
		return deleted, nil
	}
	return d.c.postDeleteOne(ctx, deleted, filter, opts)
}

// DeleteBy removes every record matching criteria.
func (d *Deleter[T]) DeleteBy(ctx context.Context, criteria map[string]any, opts Options) (BulkResult, error) {
	reqctx.AddWaypoint(ctx, reqctx.Service)

	filter := d.c.filterOf(criteria)
	if !opts.SkipHooks {
		if err := d.c.preDeleteBy(ctx, filter, opts); err != nil {
			return BulkResult{}, err
		}
	}

	result, err := d.c.store.DeleteMany(ctx, filter)
	if err != nil {
		return BulkResult{}, err
	}
	if result.Affected > 0 {
		d.c.invalidate(ctx)
	}

	if opts.SkipHooks {
		return result, nil
	}
	return d.c.postDeleteBy(ctx, result, filter, opts)
}

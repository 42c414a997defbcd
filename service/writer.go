package service

import (
	"context"

	"github.com/goliatone/go-crud-service/apperror"
	"github.com/goliatone/go-crud-service/query"
	"github.com/goliatone/go-crud-service/reqctx"
)

// Writer creates and updates records.
type Writer[T any] struct {
	c *core[T]
}

// Create runs PreCreate, inserts the result and runs PostCreate. With
// SkipHooks the draft is inserted as given.
func (w *Writer[T]) Create(ctx context.Context, draft *T, opts Options) (*T, error) {
	reqctx.AddWaypoint(ctx, reqctx.Service)

	doc := draft
	if !opts.SkipHooks {
		var err error
		if doc, err = w.c.preCreate(ctx, draft, opts); err != nil {
			return nil, err
		}
	}

	record, err := w.c.store.Insert(ctx, doc)
	if err != nil {
		return nil, err
	}
	w.c.invalidate(ctx, record)

	if opts.SkipHooks {
		return record, nil
	}
	return w.c.postCreate(ctx, record, draft, opts)
}

// UpdateByID updates the record with the given primary key.
func (w *Writer[T]) UpdateByID(ctx context.Context, id any, draft *T, opts Options) (*T, error) {
	return w.updateOne(ctx, w.c.byID(id), draft, opts)
}

// UpdateOneBy loads the record matching criteria, runs PreUpdateOne with it,
// writes the draft and runs PostUpdateOne with both versions. A missing
// record is NotFound unless SkipThrow is set. A record disappearing between
// the read and the write is always NotFound.
func (w *Writer[T]) UpdateOneBy(ctx context.Context, criteria map[string]any, draft *T, opts Options) (*T, error) {
	return w.updateOne(ctx, w.c.filterOf(criteria), draft, opts)
}

func (w *Writer[T]) updateOne(ctx context.Context, filter query.Filter, draft *T, opts Options) (*T, error) {
	reqctx.AddWaypoint(ctx, reqctx.Service)

	previous, err := w.c.findOne(ctx, filter, nil, Options{})
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return w.c.recordOrNotFound(nil, opts)
	}

	doc := draft
	if !opts.SkipHooks {
		if doc, err = w.c.preUpdateOne(ctx, previous, draft, opts); err != nil {
			return nil, err
		}
	}

	updated, err := w.c.store.UpdateOne(ctx, filter, doc, w.c.columns(opts))
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperror.NotFound(w.c.notFoundCode())
	}
	w.c.invalidate(ctx, previous, updated)

	if opts.SkipHooks {
		return updated, nil
	}
	return w.c.postUpdateOne(ctx, updated, previous, draft, opts)
}

// UpdateBy writes draft to every record matching criteria. Hooks see the
// filter only, never the individual records.
func (w *Writer[T]) UpdateBy(ctx context.Context, criteria map[string]any, draft *T, opts Options) (BulkResult, error) {
	reqctx.AddWaypoint(ctx, reqctx.Service)

	filter := w.c.filterOf(criteria)
	doc := draft
	if !opts.SkipHooks {
		var err error
		if doc, err = w.c.preUpdateBy(ctx, filter, draft, opts); err != nil {
			return BulkResult{}, err
		}
	}

	result, err := w.c.store.UpdateMany(ctx, filter, doc, w.c.columns(opts))
	if err != nil {
		return BulkResult{}, err
	}
	w.c.invalidate(ctx)

	if opts.SkipHooks {
		return result, nil
	}
	return w.c.postUpdateBy(ctx, result, draft, opts)
}

package service

import (
	"context"

	"github.com/goliatone/go-crud-service/query"
)

// Reader fetches single records.
type Reader[T any] struct {
	c *core[T]
}

// GetOneBy returns the first record matching criteria. Criteria use the
// flat filter syntax understood by query.Translator.
func (r *Reader[T]) GetOneBy(ctx context.Context, criteria map[string]any, opts Options) (*T, error) {
	return r.GetOne(ctx, r.c.filterOf(criteria), nil, opts)
}

// FindOneBy is GetOneBy.
func (r *Reader[T]) FindOneBy(ctx context.Context, criteria map[string]any, opts Options) (*T, error) {
	return r.GetOneBy(ctx, criteria, opts)
}

// GetByID returns the record with the given primary key.
func (r *Reader[T]) GetByID(ctx context.Context, id any, opts Options) (*T, error) {
	return r.GetOne(ctx, r.c.byID(id), nil, opts)
}

// GetOne returns the first record matching filter, reading only projection
// when given. opts.Select takes precedence over projection.
func (r *Reader[T]) GetOne(ctx context.Context, filter query.Filter, projection []string, opts Options) (*T, error) {
	record, err := r.c.findOne(ctx, filter, projection, opts)
	if err != nil {
		return nil, err
	}
	return r.c.recordOrNotFound(record, opts)
}

// Exists reports whether any record matches criteria.
func (r *Reader[T]) Exists(ctx context.Context, criteria map[string]any) (bool, error) {
	return r.c.store.Exists(ctx, r.c.filterOf(criteria))
}

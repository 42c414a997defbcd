package service

import (
	"context"

	"github.com/goliatone/go-crud-service/query"
)

// FindOptions shapes a read.
type FindOptions struct {
	Sort   query.Sort
	Limit  int
	Offset int
	Select []string
	// Lean skips relation loading.
	Lean bool
}

// BulkResult reports how many records a bulk write touched.
type BulkResult struct {
	Affected int64 `json:"affected"`
}

// Store is the persistence port the pipeline runs against. FindOne,
// UpdateOne and DeleteOne return nil without an error when nothing matches.
type Store[T any] interface {
	FindOne(ctx context.Context, filter query.Filter, opts FindOptions) (*T, error)
	Find(ctx context.Context, filter query.Filter, opts FindOptions) ([]T, error)
	Count(ctx context.Context, filter query.Filter) (int, error)
	Exists(ctx context.Context, filter query.Filter) (bool, error)
	Insert(ctx context.Context, record *T) (*T, error)
	// UpdateOne writes columns of draft to the first match. An empty column
	// list writes every non zero field.
	UpdateOne(ctx context.Context, filter query.Filter, draft *T, columns []string) (*T, error)
	UpdateMany(ctx context.Context, filter query.Filter, draft *T, columns []string) (BulkResult, error)
	DeleteOne(ctx context.Context, filter query.Filter) (*T, error)
	DeleteMany(ctx context.Context, filter query.Filter) (BulkResult, error)
}

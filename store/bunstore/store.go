package bunstore

import (
	"context"
	"database/sql"
	"log/slog"
	"reflect"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-crud-service/logging"
	"github.com/goliatone/go-crud-service/query"
	"github.com/goliatone/go-crud-service/service"
)

// Store persists records of type T through bun. T must be a bun model with
// a single primary key column. Reads, inserts and single deletes go through
// a repository.Repository; filtered writes use bun directly so they can
// write explicit zero values and report affected rows.
type Store[T any] struct {
	db        *bun.DB
	repo      repository.Repository[*T]
	table     *schema.Table
	pk        *schema.Field
	cols      columns
	relations []string
	logger    *slog.Logger
}

var _ service.Store[struct{}] = (*Store[struct{}])(nil)

// Option configures a Store.
type Option func(*options)

type options struct {
	relations []string
	logger    *slog.Logger
}

// WithRelations loads the named bun relations on every non lean read.
func WithRelations(names ...string) Option {
	return func(o *options) {
		o.relations = append(o.relations, names...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New returns a store for T.
func New[T any](db *bun.DB, opts ...Option) (*Store[T], error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	table := db.Table(reflect.TypeOf((*T)(nil)).Elem())
	if len(table.PKs) != 1 {
		return nil, errors.Errorf("bunstore: %s must have exactly one primary key, has %d", table.TypeName, len(table.PKs))
	}

	s := &Store[T]{
		db:        db,
		table:     table,
		pk:        table.PKs[0],
		cols:      columns{table: table, lower: lowerFunc(db)},
		relations: o.relations,
		logger:    logging.Component(o.logger, "bunstore."+table.Name),
	}
	s.repo = repository.NewRepository[*T](db, s.handlers())
	return s, nil
}

// handlers adapts the primary key to the repository. String keys that are
// empty get a new UUID; keys already set are never replaced.
func (s *Store[T]) handlers() repository.ModelHandlers[*T] {
	return repository.ModelHandlers[*T]{
		NewRecord: func() *T { return new(T) },
		GetID: func(record *T) uuid.UUID {
			v := s.pk.Value(reflect.ValueOf(record).Elem())
			switch id := v.Interface().(type) {
			case uuid.UUID:
				return id
			case string:
				if parsed, err := uuid.Parse(id); err == nil {
					return parsed
				}
			}
			return uuid.Nil
		},
		SetID: func(record *T, id uuid.UUID) {
			v := s.pk.Value(reflect.ValueOf(record).Elem())
			if !v.CanSet() || !v.IsZero() {
				return
			}
			switch v.Interface().(type) {
			case uuid.UUID:
				v.Set(reflect.ValueOf(id))
			case string:
				v.SetString(id.String())
			}
		},
		GetIdentifier: func() string { return s.pk.Name },
	}
}

// DB returns the underlying database handle.
func (s *Store[T]) DB() *bun.DB {
	return s.db
}

// criteria renders filter and opts as a single select modifier. The limit is
// always set so the repository's default page size never applies.
func (s *Store[T]) criteria(filter query.Filter, opts service.FindOptions) (repository.SelectCriteria, error) {
	where, err := s.cols.compile(filter, true)
	if err != nil {
		return nil, err
	}
	sel, err := s.cols.resolveAll(opts.Select)
	if err != nil {
		return nil, err
	}

	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if len(sel) > 0 {
			q = q.Column(sel...)
		}
		if !opts.Lean {
			for _, r := range s.relations {
				q = q.Relation(r)
			}
		}
		q = q.ApplyQueryBuilder(where.apply)

		for _, f := range opts.Sort {
			col, ok := s.cols.resolve(f.Field)
			if !ok {
				continue
			}
			if f.Direction == query.Desc {
				q = q.OrderExpr("?TableAlias.? DESC", bun.Ident(col))
			} else {
				q = q.OrderExpr("?TableAlias.? ASC", bun.Ident(col))
			}
		}
		return q.Limit(opts.Limit).Offset(opts.Offset)
	}, nil
}

func (s *Store[T]) findOne(ctx context.Context, db bun.IDB, filter query.Filter, opts service.FindOptions) (*T, error) {
	opts.Limit, opts.Offset = 1, 0
	crit, err := s.criteria(filter, opts)
	if err != nil {
		return nil, err
	}
	record, err := s.repo.GetTx(ctx, db, crit)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "bunstore: select %s", s.table.Name)
	}
	return record, nil
}

// FindOne returns the first record matching filter, or nil.
func (s *Store[T]) FindOne(ctx context.Context, filter query.Filter, opts service.FindOptions) (*T, error) {
	return s.findOne(ctx, s.db, filter, opts)
}

// Find returns every record matching filter within the window of opts.
func (s *Store[T]) Find(ctx context.Context, filter query.Filter, opts service.FindOptions) ([]T, error) {
	crit, err := s.criteria(filter, opts)
	if err != nil {
		return nil, err
	}
	rows, _, err := s.repo.ListTx(ctx, s.db, crit)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, errors.Wrapf(err, "bunstore: select %s", s.table.Name)
	}
	records := make([]T, 0, len(rows))
	for _, r := range rows {
		records = append(records, *r)
	}
	return records, nil
}

// Count returns the number of records matching filter.
func (s *Store[T]) Count(ctx context.Context, filter query.Filter) (int, error) {
	crit, err := s.criteria(filter, service.FindOptions{Lean: true})
	if err != nil {
		return 0, err
	}
	n, err := s.repo.CountTx(ctx, s.db, crit)
	if err != nil {
		return 0, errors.Wrapf(err, "bunstore: count %s", s.table.Name)
	}
	return n, nil
}

// Exists reports whether a record matches filter.
func (s *Store[T]) Exists(ctx context.Context, filter query.Filter) (bool, error) {
	crit, err := s.criteria(filter, service.FindOptions{Lean: true, Limit: 1})
	if err != nil {
		return false, err
	}
	ok, err := s.db.NewSelect().Model((*T)(nil)).Apply(crit).Exists(ctx)
	if err != nil {
		return false, errors.Wrapf(err, "bunstore: exists %s", s.table.Name)
	}
	return ok, nil
}

// Insert stores record and returns it as read back, so column defaults are
// populated. An empty string primary key is filled with a UUID.
func (s *Store[T]) Insert(ctx context.Context, record *T) (*T, error) {
	if record == nil {
		return nil, errors.New("bunstore: nil record")
	}
	record, err := s.repo.CreateTx(ctx, s.db, record)
	if err != nil {
		return nil, errors.Wrapf(err, "bunstore: insert %s", s.table.Name)
	}
	s.logger.DebugContext(ctx, "record inserted")

	id := s.pk.Value(reflect.ValueOf(record).Elem())
	if id.IsZero() {
		return record, nil
	}
	stored, err := s.findOne(ctx, s.db, s.byPK(id.Interface()), service.FindOptions{})
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return record, nil
	}
	return stored, nil
}

func (s *Store[T]) byPK(id any) query.Filter {
	return query.Where(s.pk.Name, query.OpEq, id)
}

func (s *Store[T]) updateQuery(db bun.IDB, draft *T, cols []string) (*bun.UpdateQuery, error) {
	resolved, err := s.cols.resolveAll(cols)
	if err != nil {
		return nil, err
	}
	q := db.NewUpdate().Model(draft)
	if len(resolved) > 0 {
		q = q.Column(resolved...)
	} else {
		q = q.OmitZero().ExcludeColumn(s.pk.Name)
	}
	return q, nil
}

// UpdateOne writes draft to the first record matching filter inside a
// transaction and returns the stored result, or nil when nothing matched.
func (s *Store[T]) UpdateOne(ctx context.Context, filter query.Filter, draft *T, cols []string) (*T, error) {
	if draft == nil {
		return nil, errors.New("bunstore: nil draft")
	}

	var out *T
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := s.findOne(ctx, tx, filter, service.FindOptions{Lean: true})
		if err != nil || current == nil {
			return err
		}
		id := s.pk.Value(reflect.ValueOf(current).Elem()).Interface()

		q, err := s.updateQuery(tx, draft, cols)
		if err != nil {
			return err
		}
		if _, err := q.Where("? = ?", bun.Ident(s.pk.Name), id).Exec(ctx); err != nil {
			return errors.Wrapf(err, "bunstore: update %s", s.table.Name)
		}

		out, err = s.findOne(ctx, tx, s.byPK(id), service.FindOptions{})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateMany writes draft to every record matching filter.
func (s *Store[T]) UpdateMany(ctx context.Context, filter query.Filter, draft *T, cols []string) (service.BulkResult, error) {
	if draft == nil {
		return service.BulkResult{}, errors.New("bunstore: nil draft")
	}
	where, err := s.cols.compile(filter, false)
	if err != nil {
		return service.BulkResult{}, err
	}
	q, err := s.updateQuery(s.db, draft, cols)
	if err != nil {
		return service.BulkResult{}, err
	}
	q = q.ApplyQueryBuilder(where.apply)
	if where.empty() {
		q = q.Where("1 = 1")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return service.BulkResult{}, errors.Wrapf(err, "bunstore: update %s", s.table.Name)
	}
	return s.bulkResult(ctx, res, "records updated")
}

// DeleteOne removes the first record matching filter inside a transaction
// and returns it, or nil when nothing matched.
func (s *Store[T]) DeleteOne(ctx context.Context, filter query.Filter) (*T, error) {
	var out *T
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := s.findOne(ctx, tx, filter, service.FindOptions{})
		if err != nil || current == nil {
			return err
		}
		if err := s.repo.DeleteTx(ctx, tx, current); err != nil {
			return errors.Wrapf(err, "bunstore: delete %s", s.table.Name)
		}
		out = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteMany removes every record matching filter.
func (s *Store[T]) DeleteMany(ctx context.Context, filter query.Filter) (service.BulkResult, error) {
	where, err := s.cols.compile(filter, false)
	if err != nil {
		return service.BulkResult{}, err
	}
	q := s.db.NewDelete().Model((*T)(nil)).ApplyQueryBuilder(where.apply)
	if where.empty() {
		q = q.Where("1 = 1")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return service.BulkResult{}, errors.Wrapf(err, "bunstore: delete %s", s.table.Name)
	}
	return s.bulkResult(ctx, res, "records deleted")
}

func (s *Store[T]) bulkResult(ctx context.Context, res sql.Result, msg string) (service.BulkResult, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return service.BulkResult{}, errors.Wrap(err, "bunstore: rows affected")
	}
	s.logger.DebugContext(ctx, msg, "affected", n)
	return service.BulkResult{Affected: n}, nil
}

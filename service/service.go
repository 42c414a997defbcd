package service

import (
	"context"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-crud-service/apperror"
	"github.com/goliatone/go-crud-service/cache"
	"github.com/goliatone/go-crud-service/internal/naming"
	"github.com/goliatone/go-crud-service/logging"
	"github.com/goliatone/go-crud-service/query"
	"github.com/goliatone/go-crud-service/reqctx"
)

// CreatedAtField is the default listing sort, newest first.
const CreatedAtField = "createdAt"

// Config wires a Service.
type Config[T any] struct {
	// Alias names the resource, e.g. "UserAclService". Its upper snake form
	// without the "Service" suffix prefixes error codes.
	Alias string
	Store Store[T]
	Hooks Hooks[T]

	Translator  *query.Translator
	Pagination  query.Pagination
	DefaultSort query.Sort

	// TouchColumns are always written by a restricted update, e.g.
	// updated_at.
	TouchColumns []string
	// ImmutableColumns are never written by a restricted update even when the
	// request names them. Field names match in either camel or snake case.
	ImmutableColumns []string

	// Cache is optional. SubjectOf maps a record to the cache subject its
	// entries are stored under; without it every write drops the whole alias.
	Cache     *cache.Helper
	SubjectOf func(*T) string

	Logger *slog.Logger
}

func (c Config[T]) validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Alias, validation.Required),
		validation.Field(&c.Store, validation.NotNil),
	)
}

// core is the state shared by the capability modules.
type core[T any] struct {
	alias       string
	code        string
	store       Store[T]
	hooks       Hooks[T]
	translator  *query.Translator
	pagination  query.Pagination
	defaultSort query.Sort
	touch       []string
	immutable   map[string]struct{}
	cache       *cache.Helper
	subjectOf   func(*T) string
	logger      *slog.Logger
}

// Service is the generic CRUD pipeline for records of type T. Each embedded
// module covers one capability and they all share the same store, hooks and
// cache.
type Service[T any] struct {
	*Reader[T]
	*Lister[T]
	*Writer[T]
	*Deleter[T]
	*Cached[T]

	c *core[T]
}

// New builds a service from cfg.
func New[T any](cfg Config[T]) (*Service[T], error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("service: invalid config: %w", err)
	}

	if cfg.Translator == nil {
		cfg.Translator = query.NewTranslator()
	}
	if cfg.Pagination == (query.Pagination{}) {
		cfg.Pagination = query.DefaultPagination()
	}
	if len(cfg.DefaultSort) == 0 {
		cfg.DefaultSort = query.Sort{{Field: CreatedAtField, Direction: query.Desc}}
	}

	c := &core[T]{
		alias:       cfg.Alias,
		code:        naming.AliasCode(cfg.Alias),
		store:       cfg.Store,
		hooks:       cfg.Hooks,
		translator:  cfg.Translator,
		pagination:  cfg.Pagination,
		defaultSort: cfg.DefaultSort,
		touch:       cfg.TouchColumns,
		immutable:   make(map[string]struct{}, len(cfg.ImmutableColumns)),
		cache:       cfg.Cache,
		subjectOf:   cfg.SubjectOf,
		logger:      logging.Component(cfg.Logger, cfg.Alias),
	}
	for _, col := range cfg.ImmutableColumns {
		c.immutable[naming.ToSnake(col)] = struct{}{}
	}
	c.logger.Debug("initialized service")

	return &Service[T]{
		Reader:  &Reader[T]{c: c},
		Lister:  &Lister[T]{c: c},
		Writer:  &Writer[T]{c: c},
		Deleter: &Deleter[T]{c: c},
		Cached:  &Cached[T]{c: c},
		c:       c,
	}, nil
}

// Alias returns the configured alias.
func (s *Service[T]) Alias() string {
	return s.c.alias
}

// NotFoundCode returns "{ALIAS}.NOT_FOUND".
func (s *Service[T]) NotFoundCode() string {
	return s.c.notFoundCode()
}

// Translator returns the filter translator in use.
func (s *Service[T]) Translator() *query.Translator {
	return s.c.translator
}

// Pagination returns the page size policy in use.
func (s *Service[T]) Pagination() query.Pagination {
	return s.c.pagination
}

// Logger returns the component logger.
func (s *Service[T]) Logger() *slog.Logger {
	return s.c.logger
}

func (c *core[T]) notFoundCode() string {
	code := c.code
	if code == "" {
		code = "UNKNOWN"
	}
	return code + ".NOT_FOUND"
}

// recordOrNotFound turns a missing record into NotFound unless the caller
// asked for nil.
func (c *core[T]) recordOrNotFound(record *T, opts Options) (*T, error) {
	if record == nil && !opts.SkipThrow {
		return nil, apperror.NotFound(c.notFoundCode())
	}
	return record, nil
}

func (c *core[T]) filterOf(criteria map[string]any) query.Filter {
	return c.translator.Translate(criteria)
}

func (c *core[T]) byID(id any) query.Filter {
	return query.Where(c.translator.PrimaryKey, query.OpEq, id)
}

func (c *core[T]) findOne(ctx context.Context, filter query.Filter, projection []string, opts Options) (*T, error) {
	reqctx.AddWaypoint(ctx, reqctx.Service)

	sel := projection
	if len(opts.Select) > 0 {
		sel = opts.Select
	}
	return c.store.FindOne(ctx, filter, FindOptions{Select: sel, Lean: opts.Lean})
}

// columns returns the column list for a restricted update. Immutable
// columns are dropped from the requested fields.
func (c *core[T]) columns(opts Options) []string {
	if len(opts.Fields) == 0 {
		return nil
	}
	out := make([]string, 0, len(opts.Fields)+len(c.touch))
	seen := map[string]struct{}{}
	add := func(f string) {
		if _, dup := seen[f]; dup {
			return
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	for _, f := range opts.Fields {
		if _, frozen := c.immutable[naming.ToSnake(f)]; frozen {
			continue
		}
		add(f)
	}
	for _, f := range c.touch {
		add(f)
	}
	return out
}

// invalidate drops the cache entries of the given records. Without records
// or a subject function the whole alias is dropped.
func (c *core[T]) invalidate(ctx context.Context, records ...*T) {
	if !c.cache.Enabled() {
		return
	}

	if c.subjectOf == nil || len(records) == 0 {
		c.cache.InvalidateAll(ctx)
		return
	}

	done := map[string]struct{}{}
	for _, r := range records {
		if r == nil {
			continue
		}
		subject := c.subjectOf(r)
		if _, ok := done[subject]; ok {
			continue
		}
		done[subject] = struct{}{}
		c.cache.InvalidateSubject(ctx, subject)
	}
}

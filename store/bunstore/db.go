package bunstore

import (
	"context"
	"database/sql"
	"io/fs"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-crud-service/logging"
	"github.com/goliatone/go-crud-service/reqctx"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DBConfig describes a database connection.
type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// SlowQuery logs queries slower than this at warn level. Zero disables it.
	SlowQuery time.Duration
	Logger    *slog.Logger
}

// Validate checks the connection settings.
func (c DBConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.MaxOpenConns, validation.Min(0)),
		validation.Field(&c.MaxIdleConns, validation.Min(0)),
	)
}

// Open connects to the database described by cfg and installs the query
// hook. The connection is not verified; call Ping for that.
func Open(cfg DBConfig) (*bun.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "bunstore: invalid database config")
	}

	sqldb, err := sql.Open(driverName(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "bunstore: open %s", cfg.Driver)
	}
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	db := bun.NewDB(sqldb, dialectFor(cfg.Driver))
	db.AddQueryHook(NewQueryHook(cfg.Logger, cfg.SlowQuery))
	return db, nil
}

func dialectFor(driver string) schema.Dialect {
	if driver == DriverPostgres {
		return pgdialect.New()
	}
	return sqlitedialect.New()
}

// Migrate applies every pending goose migration found in dir of fsys.
func Migrate(ctx context.Context, db *bun.DB, fsys fs.FS, dir string) error {
	dialect := DriverSQLite
	if db.Dialect().Name().String() == "pg" {
		dialect = DriverPostgres
	}

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(dialect); err != nil {
		return errors.Wrap(err, "bunstore: goose dialect")
	}
	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return errors.Wrap(err, "bunstore: migrate")
	}
	return nil
}

// QueryHook logs every query at debug level and marks the repository
// waypoint on the request state.
type QueryHook struct {
	logger *slog.Logger
	slow   time.Duration
}

var _ bun.QueryHook = (*QueryHook)(nil)

// NewQueryHook returns a hook logging through l.
func NewQueryHook(l *slog.Logger, slow time.Duration) *QueryHook {
	return &QueryHook{logger: logging.Component(l, "sql"), slow: slow}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	reqctx.AddWaypoint(ctx, reqctx.Repository)
	return ctx
}

func (h *QueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	attrs := []any{
		"operation", event.Operation(),
		"duration", elapsed,
		"query", event.Query,
	}

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.logger.ErrorContext(ctx, "query failed", append(attrs, "error", event.Err)...)
	case h.slow > 0 && elapsed > h.slow:
		h.logger.WarnContext(ctx, "slow query", attrs...)
	default:
		h.logger.DebugContext(ctx, "query", attrs...)
	}
}

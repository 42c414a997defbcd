package di

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-crud-service/auth"
	"github.com/goliatone/go-crud-service/cache"
	"github.com/goliatone/go-crud-service/config"
	"github.com/goliatone/go-crud-service/httpapi"
	"github.com/goliatone/go-crud-service/internal/acl"
	"github.com/goliatone/go-crud-service/internal/migrations"
	"github.com/goliatone/go-crud-service/logging"
	"github.com/goliatone/go-crud-service/retry"
	"github.com/goliatone/go-crud-service/service"
	"github.com/goliatone/go-crud-service/store/bunstore"
	"github.com/goliatone/go-crud-service/store/cachedstore"
)

// Container owns the process wide singletons: the database, the cache
// backend, the metrics registry, the token manager and the router with every
// resource mounted.
type Container struct {
	config   config.Config
	logger   *slog.Logger
	db       *bun.DB
	cache    cache.CacheService
	registry *prometheus.Registry
	metrics  *cache.Metrics
	tokens   *auth.Manager
	limiter  *httpapi.RateLimiter
	router   *httpapi.Router
	acl      *acl.Service

	ownsDB bool
}

// Option overrides a dependency the container would otherwise build.
type Option func(*Container)

// WithLogger replaces the logger built from the config.
func WithLogger(l *slog.Logger) Option {
	return func(c *Container) {
		c.logger = l
	}
}

// WithDB uses db instead of opening one. The container does not close it.
func WithDB(db *bun.DB) Option {
	return func(c *Container) {
		c.db = db
	}
}

// WithCacheService uses svc instead of building the configured backend.
func WithCacheService(svc cache.CacheService) Option {
	return func(c *Container) {
		c.cache = svc
	}
}

// NewContainer wires every component described by cfg. The database is
// pinged with retries and migrated when cfg.DB.Migrate is set.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	c := &Container{config: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		l, err := logging.New(cfg.Log)
		if err != nil {
			return nil, err
		}
		c.logger = l
	}

	if err := c.openDB(ctx); err != nil {
		return nil, err
	}

	if c.cache == nil {
		svc, err := cache.NewCacheService(cfg.CacheConfig())
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.cache = svc
	}

	if cfg.MetricsEnabled {
		c.registry = prometheus.NewRegistry()
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewDBStatsCollector(c.db.DB, "crud"),
		)
		c.metrics = cache.NewMetrics(c.registry)
	}

	c.tokens = auth.NewManager([]byte(cfg.JWT.Secret), cfg.JWT.Issuer, cfg.JWT.Validity)

	if cfg.RateLimit.Enabled {
		c.limiter = httpapi.NewRateLimiter(httpapi.RateLimitConfig{
			Max:      cfg.RateLimit.Max,
			Window:   cfg.RateLimit.Window,
			Verifier: c.tokens,
		})
	}

	if err := c.buildRouter(); err != nil {
		_ = c.Close()
		return nil, err
	}

	c.logger.Info("container ready",
		"env", cfg.Env,
		"db", cfg.DB.Driver,
		"cache", cfg.Cache.Backend,
		"metrics", cfg.MetricsEnabled,
	)
	return c, nil
}

func (c *Container) openDB(ctx context.Context) error {
	if c.db == nil {
		dbCfg := c.config.DBConfig()
		dbCfg.Logger = c.logger
		db, err := bunstore.Open(dbCfg)
		if err != nil {
			return err
		}
		c.db = db
		c.ownsDB = true
	}

	err := retry.Do(ctx, retry.Config{
		MaxAttempts: c.config.DB.ConnectAttempts,
		BaseDelay:   retry.DefaultConfig().BaseDelay,
		OnRetry: func(attempt uint64, err error) {
			c.logger.Warn("database not reachable, retrying", "attempt", attempt, "error", err)
		},
	}, c.db.PingContext)
	if err != nil {
		_ = c.Close()
		return err
	}

	if c.config.DB.Migrate {
		if err := bunstore.Migrate(ctx, c.db, migrations.FS, "."); err != nil {
			_ = c.Close()
			return err
		}
	}
	return nil
}

func (c *Container) buildRouter() error {
	cfg := c.config
	c.router = httpapi.NewRouter(httpapi.RouterConfig{
		Prefix:       cfg.Prefix,
		Environment:  cfg.Env,
		IncludeStack: cfg.Trace.IncludeStack,
		VerboseTrace: cfg.Trace.Verbose,
		TraceLog:     cfg.Trace.Log,
		CORS:         httpapi.CORSConfig{AllowOrigins: cfg.CORSOrigins},
		RateLimit:    c.limiter,
		Registry:     c.registry,
		Health:       &httpapi.Health{DB: c.db, Cache: c.cache},
		Logger:       c.logger,
	})

	base, err := bunstore.New[acl.UserACL](c.db, bunstore.WithLogger(c.logger))
	if err != nil {
		return err
	}
	var store service.Store[acl.UserACL] = base
	if cfg.Cache.StoreReads {
		store = cachedstore.New[acl.UserACL](base, c.cache,
			cachedstore.WithTTL(cfg.CacheConfig().Timeouts.Short),
			cachedstore.WithLogger(c.logger),
		)
	}
	c.acl, err = acl.NewService(acl.Deps{
		Store:  store,
		Cache:  c.CacheHelper(acl.CacheModel),
		Logger: c.logger,
	})
	if err != nil {
		return err
	}
	acl.Routes(c.router, c.acl, c.tokens)
	return nil
}

// CacheHelper returns a helper for model on the shared backend, using the
// medium TTL preset and the shared metrics.
func (c *Container) CacheHelper(model string) *cache.Helper {
	opts := []cache.HelperOption{
		cache.WithLogger(c.logger),
		cache.WithTTL(c.config.CacheConfig().Timeouts.Medium),
	}
	if c.metrics != nil {
		opts = append(opts, cache.WithMetrics(c.metrics))
	}
	return cache.NewHelper(c.cache, model, opts...)
}

func (c *Container) Config() config.Config { return c.config }
func (c *Container) Logger() *slog.Logger { return c.logger }
func (c *Container) DB() *bun.DB { return c.db }
func (c *Container) CacheService() cache.CacheService { return c.cache }
func (c *Container) Registry() *prometheus.Registry { return c.registry }
func (c *Container) Tokens() *auth.Manager { return c.tokens }
func (c *Container) RateLimiter() *httpapi.RateLimiter { return c.limiter }
func (c *Container) Router() *httpapi.Router { return c.router }
func (c *Container) ACL() *acl.Service { return c.acl }

// Close releases the database, when the container opened it, and the cache
// backend.
func (c *Container) Close() error {
	var errs []error
	if closer, ok := c.cache.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if c.db != nil && c.ownsDB {
		errs = append(errs, c.db.Close())
	}
	return errors.Join(errs...)
}

package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-crud-service/apperror"
)

// RouterConfig assembles the global middleware chain.
type RouterConfig struct {
	Prefix      string
	Environment string
	// IncludeStack adds stack traces to error bodies.
	IncludeStack bool
	VerboseTrace bool
	TraceLog     bool

	CORS      CORSConfig
	RateLimit *RateLimiter

	// Registry enables /metrics and HTTP metrics when set.
	Registry *prometheus.Registry
	Health   *Health

	Logger *slog.Logger
}

// CORSConfig lists the allowed origins. Empty allows every origin without
// credentials.
type CORSConfig struct {
	AllowOrigins []string
	MaxAge       time.Duration
}

// Router is the engine with the shared error filter and API group.
type Router struct {
	Engine *gin.Engine
	API    *gin.RouterGroup
	Errors *ErrorFilter
}

// NewRouter builds the engine. Middleware order: recovery, request context,
// access log, CORS, metrics, error filter, rate limit. Health and metrics
// live outside the API prefix and the rate limit.
func NewRouter(cfg RouterConfig) *Router {
	filter := NewErrorFilter(cfg.Environment, cfg.IncludeStack, cfg.Logger)

	engine := gin.New()
	engine.Use(
		RequestContext(ContextOptions{VerboseTrace: cfg.VerboseTrace, TraceLog: cfg.TraceLog, Logger: cfg.Logger}),
		filter.Recovery(),
		HTTPLogger(cfg.Logger),
		cors.New(corsConfig(cfg.CORS)),
	)
	if cfg.Registry != nil {
		engine.Use(NewMetrics(cfg.Registry).Middleware())
		engine.GET("/metrics", MetricsHandler(cfg.Registry))
	}
	engine.Use(filter.Middleware())

	if cfg.Health != nil {
		engine.GET("/health", cfg.Health.Handler())
	}

	engine.NoRoute(func(c *gin.Context) {
		filter.Respond(c, apperror.New("NotFoundError", "route not found", http.StatusNotFound, apperror.CodeNotFound,
			apperror.WithContext(map[string]any{"method": c.Request.Method, "path": c.Request.URL.Path}),
		))
	})

	api := engine.Group(cfg.Prefix)
	if cfg.RateLimit != nil {
		api.Use(cfg.RateLimit.Middleware(filter))
	}

	return &Router{Engine: engine, API: api, Errors: filter}
}

func corsConfig(cfg CORSConfig) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", HeaderRequestID, HeaderSocketClientID},
		ExposeHeaders: []string{HeaderRequestID, HeaderRateLimit, HeaderRateRemaining, HeaderRateReset, HeaderRetryAfter},
		MaxAge:        cfg.MaxAge,
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 24 * time.Hour
	}
	if len(cfg.AllowOrigins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = cfg.AllowOrigins
	c.AllowCredentials = true
	return c
}

// Protected returns a child of the API group behind authentication and the
// viewer interceptor.
func (r *Router) Protected(path string, v TokenVerifier) *gin.RouterGroup {
	g := r.API.Group(path)
	g.Use(Authenticate(v, r.Errors), ViewerContext())
	return g
}

// Package config loads the server configuration from the environment and
// optional dotenv files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"

	"github.com/goliatone/go-crud-service/cache"
	"github.com/goliatone/go-crud-service/logging"
	"github.com/goliatone/go-crud-service/store/bunstore"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// MinProductionSecret is the shortest JWT secret accepted in production.
const MinProductionSecret = 32

// Config is the whole server configuration.
type Config struct {
	Env             string
	Port            int
	Prefix          string
	ShutdownTimeout time.Duration

	DB        DB
	Cache     Cache
	JWT       JWT
	RateLimit RateLimit
	Log       logging.Config
	Trace     Trace

	CORSOrigins    []string
	MetricsEnabled bool
}

type DB struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SlowQuery       time.Duration
	Migrate         bool
	// ConnectAttempts bounds the startup ping retries.
	ConnectAttempts uint64
}

type Cache struct {
	Backend       string
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
	// StoreReads also caches storage reads below the service pipeline.
	StoreReads bool
}

type JWT struct {
	Secret   string
	Issuer   string
	Validity time.Duration
}

type RateLimit struct {
	Enabled bool
	Max     int
	Window  time.Duration
}

type Trace struct {
	Verbose bool
	Log     bool
	// IncludeStack adds stacks to error bodies.
	IncludeStack bool
}

// Default returns the development configuration.
func Default() Config {
	return Config{
		Env:             EnvDevelopment,
		Port:            3000,
		Prefix:          "/api",
		ShutdownTimeout: 10 * time.Second,
		DB: DB{
			Driver:          bunstore.DriverSQLite,
			DSN:             "file:crud.db?cache=shared&_fk=1",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			SlowQuery:       200 * time.Millisecond,
			Migrate:         true,
			ConnectAttempts: 5,
		},
		Cache: Cache{
			Backend:   cache.BackendMemory,
			TTL:       5 * time.Minute,
			RedisAddr: "localhost:6379",
		},
		JWT: JWT{
			Secret:   "development-secret",
			Issuer:   "crud-service",
			Validity: time.Hour,
		},
		RateLimit: RateLimit{
			Enabled: true,
			Max:     100,
			Window:  time.Minute,
		},
		Log:            logging.Config{Level: "info", Format: logging.FormatJSON},
		Trace:          Trace{IncludeStack: true},
		MetricsEnabled: true,
	}
}

// Lookup returns the value of an environment key.
type Lookup func(key string) (string, bool)

// Load reads dir/.env and dir/.env.<APP_ENV>, the latter winning, and then
// the process environment, which wins over both files. Missing files are
// skipped.
func Load(dir string) (Config, error) {
	files := map[string]string{}
	env := os.Getenv("APP_ENV")

	base, err := readEnvFile(filepath.Join(dir, ".env"))
	if err != nil {
		return Config{}, err
	}
	for k, v := range base {
		files[k] = v
	}
	if env == "" {
		env = files["APP_ENV"]
	}
	if env != "" {
		overlay, err := readEnvFile(filepath.Join(dir, ".env."+env))
		if err != nil {
			return Config{}, err
		}
		for k, v := range overlay {
			files[k] = v
		}
	}

	return FromLookup(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := files[key]
		return v, ok
	})
}

func readEnvFile(path string) (map[string]string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return values, nil
}

// FromLookup builds a Config over Default using lookup and validates it.
func FromLookup(lookup Lookup) (Config, error) {
	cfg := Default()
	r := reader{lookup: lookup}

	r.str("APP_ENV", &cfg.Env)
	r.integer("PORT", &cfg.Port)
	r.str("API_PREFIX", &cfg.Prefix)
	r.duration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	r.str("DB_DRIVER", &cfg.DB.Driver)
	r.str("DB_DSN", &cfg.DB.DSN)
	r.integer("DB_MAX_OPEN_CONNS", &cfg.DB.MaxOpenConns)
	r.integer("DB_MAX_IDLE_CONNS", &cfg.DB.MaxIdleConns)
	r.duration("DB_CONN_MAX_LIFETIME", &cfg.DB.ConnMaxLifetime)
	r.duration("DB_SLOW_QUERY", &cfg.DB.SlowQuery)
	r.boolean("DB_MIGRATE", &cfg.DB.Migrate)
	r.unsigned("DB_CONNECT_ATTEMPTS", &cfg.DB.ConnectAttempts)

	r.str("CACHE_BACKEND", &cfg.Cache.Backend)
	r.duration("CACHE_TTL", &cfg.Cache.TTL)
	r.str("REDIS_ADDR", &cfg.Cache.RedisAddr)
	r.str("REDIS_PASSWORD", &cfg.Cache.RedisPassword)
	r.integer("REDIS_DB", &cfg.Cache.RedisDB)
	r.str("CACHE_KEY_PREFIX", &cfg.Cache.KeyPrefix)
	r.boolean("CACHE_STORE_READS", &cfg.Cache.StoreReads)

	r.str("JWT_SECRET", &cfg.JWT.Secret)
	r.str("JWT_ISSUER", &cfg.JWT.Issuer)
	r.duration("JWT_VALIDITY", &cfg.JWT.Validity)

	r.boolean("RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled)
	r.integer("RATE_LIMIT_MAX", &cfg.RateLimit.Max)
	r.duration("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)

	r.str("LOG_LEVEL", &cfg.Log.Level)
	r.str("LOG_FORMAT", &cfg.Log.Format)

	cfg.Trace.IncludeStack = cfg.Env != EnvProduction
	r.boolean("TRACE_VERBOSE", &cfg.Trace.Verbose)
	r.boolean("TRACE_LOG", &cfg.Trace.Log)
	r.boolean("ERROR_INCLUDE_STACK", &cfg.Trace.IncludeStack)

	r.list("CORS_ORIGINS", &cfg.CORSOrigins)
	r.boolean("METRICS_ENABLED", &cfg.MetricsEnabled)

	if r.err != nil {
		return Config{}, r.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks the values.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Env, validation.Required, validation.In(EnvDevelopment, EnvTest, EnvStaging, EnvProduction)),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ShutdownTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.DB),
		validation.Field(&c.Cache),
		validation.Field(&c.JWT,
			validation.By(func(any) error { return c.JWT.validate(c.Env == EnvProduction) }),
		),
		validation.Field(&c.RateLimit),
		validation.Field(&c.Log, validation.By(func(any) error {
			if _, err := logging.ParseLevel(c.Log.Level); err != nil {
				return validation.NewError("validation_log_level", err.Error())
			}
			return validation.Validate(c.Log.Format, validation.In(logging.FormatJSON, logging.FormatText))
		})),
	)
}

func (d DB) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(bunstore.DriverSQLite, bunstore.DriverPostgres)),
		validation.Field(&d.DSN, validation.Required),
		validation.Field(&d.MaxOpenConns, validation.Min(0)),
		validation.Field(&d.ConnectAttempts, validation.Required),
	)
}

func (c Cache) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(cache.BackendMemory, cache.BackendRedis)),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
		validation.Field(&c.RedisAddr, validation.When(c.Backend == cache.BackendRedis, validation.Required)),
	)
}

func (j JWT) validate(production bool) error {
	return validation.ValidateStruct(&j,
		validation.Field(&j.Secret,
			validation.Required,
			validation.When(production, validation.Length(MinProductionSecret, 0)),
		),
		validation.Field(&j.Validity, validation.Required),
	)
}

func (r RateLimit) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Max, validation.When(r.Enabled, validation.Required, validation.Min(1))),
		validation.Field(&r.Window, validation.When(r.Enabled, validation.Required)),
	)
}

// Addr is the listen address.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// DBConfig maps the database section onto bunstore.
func (c Config) DBConfig() bunstore.DBConfig {
	return bunstore.DBConfig{
		Driver:          c.DB.Driver,
		DSN:             c.DB.DSN,
		MaxOpenConns:    c.DB.MaxOpenConns,
		MaxIdleConns:    c.DB.MaxIdleConns,
		ConnMaxLifetime: c.DB.ConnMaxLifetime,
		SlowQuery:       c.DB.SlowQuery,
	}
}

// CacheConfig maps the cache section onto the cache package.
func (c Config) CacheConfig() cache.Config {
	out := cache.DefaultConfig()
	out.Backend = c.Cache.Backend
	if c.Cache.TTL > 0 {
		out.TTL = c.Cache.TTL
	}
	out.Redis = cache.RedisConfig{
		Addr:      c.Cache.RedisAddr,
		Password:  c.Cache.RedisPassword,
		DB:        c.Cache.RedisDB,
		KeyPrefix: c.Cache.KeyPrefix,
	}
	return out
}

type reader struct {
	lookup Lookup
	err    error
}

func (r *reader) get(key string) (string, bool) {
	if r.err != nil {
		return "", false
	}
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *reader) fail(key, raw string, err error) {
	r.err = fmt.Errorf("config: %s=%q: %w", key, raw, err)
}

func (r *reader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *reader) integer(key string, dst *int) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = n
}

func (r *reader) unsigned(key string, dst *uint64) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = n
}

func (r *reader) boolean(key string, dst *bool) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = b
}

func (r *reader) duration(key string, dst *time.Duration) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = d
}

func (r *reader) list(key string, dst *[]string) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

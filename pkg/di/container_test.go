package di

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-crud-service/config"
	"github.com/goliatone/go-crud-service/logging"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Env = config.EnvTest
	cfg.DB.DSN = "file::memory:"
	cfg.DB.MaxOpenConns = 1
	cfg.DB.ConnectAttempts = 1
	return cfg
}

func newTestContainer(t *testing.T, cfg config.Config, opts ...Option) *Container {
	t.Helper()
	c, err := NewContainer(context.Background(), cfg, append([]Option{WithLogger(logging.Discard())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestNewContainer_Wiring(t *testing.T) {
	c := newTestContainer(t, testConfig())

	require.NotNil(t, c.DB())
	require.NotNil(t, c.CacheService())
	require.NotNil(t, c.Registry())
	require.NotNil(t, c.Tokens())
	require.NotNil(t, c.RateLimiter())
	require.NotNil(t, c.ACL())
	assert.Same(t, c.CacheService(), c.CacheService())

	exists, err := c.DB().NewSelect().Table("user_acls").Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists, "migrations ran on an empty table")

	engine := c.Router().Engine

	w := get(t, engine, "/health")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = get(t, engine, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	w = get(t, engine, "/api/user-acls")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewContainer_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsEnabled = false
	cfg.RateLimit.Enabled = false
	c := newTestContainer(t, cfg)

	assert.Nil(t, c.Registry())
	assert.Nil(t, c.RateLimiter())
	assert.Equal(t, http.StatusNotFound, get(t, c.Router().Engine, "/metrics").Code)
}

func TestNewContainer_InvalidCacheBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Backend = "memcached"

	_, err := NewContainer(context.Background(), cfg, WithLogger(logging.Discard()))
	assert.Error(t, err)
}

func TestNewContainer_RetriesDatabasePing(t *testing.T) {
	sqldb, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqldb.Close()
	db := bun.NewDB(sqldb, sqlitedialect.New())

	down := errors.New("connection refused")
	mock.ExpectPing().WillReturnError(down)
	mock.ExpectPing().WillReturnError(down)
	mock.ExpectPing().WillReturnError(down)

	cfg := testConfig()
	cfg.DB.ConnectAttempts = 3
	cfg.DB.Migrate = false

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = NewContainer(ctx, cfg, WithLogger(logging.Discard()), WithDB(db))
	assert.ErrorIs(t, err, down)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContainer_CacheHelperSharesBackend(t *testing.T) {
	c := newTestContainer(t, testConfig())
	ctx := context.Background()

	a := c.CacheHelper("gadget")
	b := c.CacheHelper("gadget")
	a.Set(ctx, a.OneKey("s1", nil), map[string]string{"name": "x"})

	var out map[string]string
	require.True(t, b.Get(ctx, b.OneKey("s1", nil), &out))
	assert.Equal(t, "x", out["name"])

	w := get(t, c.Router().Engine, "/metrics")
	assert.True(t, strings.Contains(w.Body.String(), "gadget"), "cache lookups are exported")
}

func TestNewContainer_StoreReadCache(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.StoreReads = true
	c := newTestContainer(t, cfg)
	ctx := context.Background()

	_, err := c.ACL().Count(ctx, map[string]any{"accountId": "acc-1"})
	require.NoError(t, err)

	_, err = c.DB().NewInsert().Model(&map[string]any{
		"id": "raw-1", "account_id": "acc-1", "created_at": time.Now(), "updated_at": time.Now(),
	}).TableExpr("user_acls").Exec(ctx)
	require.NoError(t, err)

	n, err := c.ACL().Count(ctx, map[string]any{"accountId": "acc-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, n, "the count is served from the store cache")
}

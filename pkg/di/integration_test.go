package di

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crud-service/auth"
	"github.com/goliatone/go-crud-service/cache"
	"github.com/goliatone/go-crud-service/internal/acl"
)

func call(t *testing.T, h http.Handler, method, target, body, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	out := map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func redisKeys(mr *miniredis.Miniredis, prefix string) []string {
	var out []string
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

func TestIntegration_RedisBackedACLFlow(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.Cache.Backend = cache.BackendRedis
	cfg.Cache.RedisAddr = mr.Addr()
	cfg.Cache.KeyPrefix = "it:"
	c := newTestContainer(t, cfg)
	engine := c.Router().Engine

	admin, err := c.Tokens().Issue(&auth.Account{ID: "admin-1", Role: auth.RoleAdmin, IsActive: true})
	require.NoError(t, err)

	status, body := call(t, engine, http.MethodPost, "/api/user-acls", `{"accountId":"acc-1","note":"a"}`, admin)
	require.Equal(t, http.StatusCreated, status, body)

	status, body = call(t, engine, http.MethodGet, "/api/accounts/acc-1/acls", "", admin)
	require.Equal(t, http.StatusOK, status, body)
	assert.Len(t, body["data"].([]any), 1)

	keys := redisKeys(mr, "it:"+acl.CacheModel+":getList:acc-1")
	require.Len(t, keys, 1, "the scoped page is cached in redis: %v", mr.Keys())

	status, _ = call(t, engine, http.MethodPost, "/api/user-acls", `{"accountId":"acc-1","note":"b"}`, admin)
	require.Equal(t, http.StatusCreated, status)
	assert.Empty(t, redisKeys(mr, "it:"+acl.CacheModel+":getList:acc-1"), "writes drop the account entries")

	status, body = call(t, engine, http.MethodGet, "/api/accounts/acc-1/acls", "", admin)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].([]any), 2)

	status, body = call(t, engine, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status, body)

	mr.Close()
	status, body = call(t, engine, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, status, body)
}

func TestIntegration_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Max = 2
	c := newTestContainer(t, cfg)
	engine := c.Router().Engine

	for i := 0; i < 2; i++ {
		status, _ := call(t, engine, http.MethodGet, "/api/user-acls", "", "tok")
		assert.Equal(t, http.StatusUnauthorized, status)
	}
	status, body := call(t, engine, http.MethodGet, "/api/user-acls", "", "tok")
	assert.Equal(t, http.StatusTooManyRequests, status, body)
}

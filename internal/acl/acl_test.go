package acl

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crud-service/apperror"
	"github.com/goliatone/go-crud-service/auth"
	"github.com/goliatone/go-crud-service/cache"
	"github.com/goliatone/go-crud-service/httpapi"
	"github.com/goliatone/go-crud-service/internal/migrations"
	"github.com/goliatone/go-crud-service/logging"
	"github.com/goliatone/go-crud-service/query"
	"github.com/goliatone/go-crud-service/service"
	"github.com/goliatone/go-crud-service/store/bunstore"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	store  *bunstore.Store[UserACL]
	engine *gin.Engine
	tokens *auth.Manager
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := bunstore.Open(bunstore.DBConfig{Driver: bunstore.DriverSQLite, DSN: "file::memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, bunstore.Migrate(ctx, db, migrations.FS, "."))

	store, err := bunstore.New[UserACL](db)
	require.NoError(t, err)

	backend, err := cache.NewCacheService(cache.DefaultConfig())
	require.NoError(t, err)

	svc, err := NewService(Deps{
		Store:  store,
		Cache:  cache.NewHelper(backend, CacheModel),
		Logger: logging.Discard(),
		Now:    func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	tokens := auth.NewManager([]byte("test-secret"), "acl-test", time.Hour)
	router := httpapi.NewRouter(httpapi.RouterConfig{Prefix: "/api", Environment: "test", Logger: logging.Discard()})
	Routes(router, svc, tokens)

	return fixture{svc: svc, store: store, engine: router.Engine, tokens: tokens}
}

func (f fixture) token(t *testing.T, acc *auth.Account) string {
	t.Helper()
	tok, err := f.tokens.Issue(acc)
	require.NoError(t, err)
	return tok
}

func (f fixture) do(t *testing.T, method, target, body, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	out := map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

var (
	admin  = &auth.Account{ID: "admin-1", Email: "admin@example.com", Role: auth.RoleAdmin, IsActive: true}
	reader = &auth.Account{ID: "reader-1", Email: "reader@example.com", Role: auth.RoleUser, IsActive: true, Permissions: []auth.Permission{PermRead}}
)

func TestService_CreateStampsAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.Create(ctx, &UserACL{ID: "ignored", AccountID: "acc-1", IsActive: true, CreatedBy: "spoofed"}, service.Options{Viewer: admin})
	require.NoError(t, err)

	assert.NotEqual(t, "ignored", got.ID)
	assert.Len(t, got.ID, 36)
	assert.Equal(t, "admin-1", got.CreatedBy)
	assert.Equal(t, "admin-1", got.UpdatedBy)
	assert.True(t, got.CreatedAt.Equal(fixedNow))
	assert.True(t, got.UpdatedAt.Equal(fixedNow))
}

func TestService_UpdateKeepsCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, &UserACL{AccountID: "acc-1"}, service.Options{Viewer: admin})
	require.NoError(t, err)

	editor := &auth.Account{ID: "editor-1"}
	updated, err := f.svc.UpdateByID(ctx, created.ID, &UserACL{IsActive: true}, service.Options{
		Viewer: editor,
		Fields: []string{"isActive"},
	})
	require.NoError(t, err)

	assert.True(t, updated.IsActive)
	assert.Equal(t, "admin-1", updated.CreatedBy)
	assert.Equal(t, "editor-1", updated.UpdatedBy)
	assert.Equal(t, "acc-1", updated.AccountID)
}

func TestService_ValidationCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, &UserACL{}, service.Options{})
	appErr, ok := apperror.As(err)
	require.True(t, ok, "expected an application error, got %v", err)
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
	assert.Equal(t, CodeAccountRequired, appErr.Context["subStatus"])

	created, err := f.svc.Create(ctx, &UserACL{AccountID: "acc-1"}, service.Options{})
	require.NoError(t, err)

	_, err = f.svc.UpdateByID(ctx, created.ID, &UserACL{ID: "other"}, service.Options{})
	appErr, ok = apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, CodeIDImmutable, appErr.Context["subStatus"])
}

func TestService_DuplicateNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, &UserACL{AccountID: "acc-1", Note: "vip"}, service.Options{})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, &UserACL{AccountID: "acc-1", Note: "vip"}, service.Options{})
	require.Error(t, err)
	assert.True(t, bunstore.IsDuplicateKey(err))
}

func TestService_BulkUpdateStampsViewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, note := range []string{"a", "b"} {
		_, err := f.svc.Create(ctx, &UserACL{AccountID: "acc-1", Note: note}, service.Options{Viewer: admin})
		require.NoError(t, err)
	}

	res, err := f.svc.UpdateBy(ctx, map[string]any{"accountId": "acc-1"}, &UserACL{IsActive: true}, service.Options{
		Viewer: &auth.Account{ID: "bulk-1"},
		Fields: []string{"isActive"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Affected)

	rows, err := f.svc.List(ctx, query.Specification{Filter: map[string]any{"accountId": "acc-1"}}, service.Options{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.True(t, r.IsActive)
		assert.Equal(t, "bulk-1", r.UpdatedBy)
		assert.Equal(t, "admin-1", r.CreatedBy)
	}
}

func TestRoutes_Guards(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/user-acls", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, float64(http.StatusUnauthorized), body["statusCode"])

	status, _ = f.do(t, http.MethodGet, "/api/user-acls", "", f.token(t, reader))
	assert.Equal(t, http.StatusForbidden, status)

	inactive := &auth.Account{ID: "x", Role: auth.RoleUser, Permissions: []auth.Permission{PermRead}}
	status, _ = f.do(t, http.MethodGet, "/api/accounts/acc-1/acls", "", f.token(t, inactive))
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = f.do(t, http.MethodGet, "/api/accounts/acc-1/acls", "", f.token(t, reader))
	assert.Equal(t, http.StatusOK, status)
}

func TestRoutes_AdminCRUD(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, admin)

	status, body := f.do(t, http.MethodPost, "/api/user-acls", `{"accountId":"acc-1","note":"first"}`, tok)
	require.Equal(t, http.StatusCreated, status, body)
	data := body["data"].(map[string]any)
	id := data["id"].(string)
	assert.Equal(t, "admin-1", data["createdBy"])

	status, body = f.do(t, http.MethodPatch, "/api/user-acls/"+id, `{"isActive":true}`, tok)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["data"].(map[string]any)["isActive"])

	status, body = f.do(t, http.MethodPost, "/api/user-acls", `{"accountId":"acc-1","note":"first"}`, tok)
	assert.Equal(t, http.StatusConflict, status, body)

	status, body = f.do(t, http.MethodPost, "/api/user-acls", `{"note":"orphan"}`, tok)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, CodeAccountRequired, body["errorCode"])

	status, body = f.do(t, http.MethodPost, "/api/user-acls", `{"accountId":"acc-2","note":"second"}`, tok)
	require.Equal(t, http.StatusCreated, status, body)

	search := func(q string) []any {
		status, body := f.do(t, http.MethodGet, "/api/user-acls?q="+q, "", tok)
		require.Equal(t, http.StatusOK, status, body)
		data, _ := body["data"].([]any)
		return data
	}
	all := search("")
	assert.Len(t, all, 2)
	hits := search("FIR")
	require.Len(t, hits, 1)
	assert.Equal(t, "first", hits[0].(map[string]any)["note"])
	hits = search("cond")
	require.Len(t, hits, 1)
	assert.Equal(t, "second", hits[0].(map[string]any)["note"])
	assert.Empty(t, search("nomatch"))

	status, _ = f.do(t, http.MethodDelete, "/api/user-acls/"+id, "", tok)
	assert.Equal(t, http.StatusOK, status)

	status, body = f.do(t, http.MethodGet, "/api/user-acls/"+id, "", tok)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "USER_ACL.NOT_FOUND", body["message"])
}

func TestRoutes_PatchKeepsAuditColumns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.token(t, admin)

	status, body := f.do(t, http.MethodPost, "/api/user-acls", `{"accountId":"acc-1","note":"first"}`, tok)
	require.Equal(t, http.StatusCreated, status, body)
	id := body["data"].(map[string]any)["id"].(string)

	status, body = f.do(t, http.MethodPatch, "/api/user-acls/"+id,
		`{"note":"x","createdBy":"evil","createdAt":"1999-01-01T00:00:00Z"}`, tok)
	require.Equal(t, http.StatusOK, status, body)

	status, body = f.do(t, http.MethodPatch, "/api/user-acls?filter="+url.QueryEscape(`{"accountId":"acc-1"}`),
		`{"createdBy":"evil","isActive":true}`, tok)
	require.Equal(t, http.StatusOK, status, body)

	stored, err := f.svc.GetByID(ctx, id, service.Options{})
	require.NoError(t, err)
	assert.Equal(t, "x", stored.Note)
	assert.True(t, stored.IsActive)
	assert.Equal(t, "admin-1", stored.CreatedBy)
	assert.True(t, stored.CreatedAt.Equal(fixedNow), "created at %v", stored.CreatedAt)
}

func TestRoutes_AccountScopeIsCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	adminTok := f.token(t, admin)
	readerTok := f.token(t, reader)

	status, _ := f.do(t, http.MethodPost, "/api/user-acls", `{"accountId":"acc-1","note":"a"}`, adminTok)
	require.Equal(t, http.StatusCreated, status)
	status, _ = f.do(t, http.MethodPost, "/api/user-acls", `{"accountId":"acc-2","note":"b"}`, adminTok)
	require.Equal(t, http.StatusCreated, status)

	list := func(extra string) []any {
		status, body := f.do(t, http.MethodGet, "/api/accounts/acc-1/acls/all"+extra, "", readerTok)
		require.Equal(t, http.StatusOK, status, body)
		return body["data"].([]any)
	}
	require.Len(t, list(""), 1)

	_, err := f.store.Insert(ctx, &UserACL{AccountID: "acc-1", Note: "direct", CreatedAt: fixedNow, UpdatedAt: fixedNow})
	require.NoError(t, err)
	assert.Len(t, list(""), 1, "served from cache")

	status, _ = f.do(t, http.MethodPost, "/api/user-acls", `{"accountId":"acc-1","note":"c"}`, adminTok)
	require.Equal(t, http.StatusCreated, status)
	assert.Len(t, list(""), 3, "a write for the account drops its entries")

	assert.Len(t, list("?filter="+url.QueryEscape(`{"accountId":"acc-2"}`)), 3, "the path scope wins")
}

package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-crud-service/cache"
	"github.com/goliatone/go-crud-service/logging"
	"github.com/goliatone/go-crud-service/query"
	"github.com/goliatone/go-crud-service/service"
	"github.com/goliatone/go-crud-service/store/bunstore"
)

type note struct {
	bun.BaseModel `bun:"table:notes,alias:n"`

	ID        string    `bun:"id,pk" json:"id"`
	Owner     string    `bun:"owner" json:"owner"`
	Title     string    `bun:"title" json:"title"`
	Done      bool      `bun:"done" json:"done"`
	CreatedAt time.Time `bun:"created_at" json:"createdAt"`
}

type resourceFixture struct {
	engine *gin.Engine
	svc    *service.Service[note]
	store  *bunstore.Store[note]
}

func newResourceFixture(t *testing.T, withCache bool) resourceFixture {
	t.Helper()
	ctx := context.Background()

	db, err := bunstore.Open(bunstore.DBConfig{Driver: bunstore.DriverSQLite, DSN: "file::memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.NewCreateTable().Model((*note)(nil)).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewCreateIndex().Model((*note)(nil)).Index("uq_notes_title").Unique().Column("title").Exec(ctx)
	require.NoError(t, err)

	store, err := bunstore.New[note](db)
	require.NoError(t, err)

	var helper *cache.Helper
	if withCache {
		backend, err := cache.NewCacheService(cache.DefaultConfig())
		require.NoError(t, err)
		helper = cache.NewHelper(backend, "note")
	}

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, err := service.New(service.Config[note]{
		Alias: "NoteService",
		Store: store,
		Hooks: service.Hooks[note]{
			PreCreate: func(ctx context.Context, draft *note, opts service.Options) (*note, error) {
				clock = clock.Add(time.Minute)
				draft.CreatedAt = clock
				return draft, nil
			},
		},
		Pagination: query.Pagination{DefaultLimit: 2, MaxLimit: 10},
		Cache:      helper,
		SubjectOf:  func(n *note) string { return n.Owner },
		Logger:     logging.Discard(),
	})
	require.NoError(t, err)

	router := NewRouter(RouterConfig{Prefix: "/api", Environment: "test", Logger: logging.Discard()})
	res := &Resource[note]{
		Service: svc,
		Errors:  router.Errors,
		Query:   query.ParseOptions{SearchFields: []string{"title"}},
	}
	res.Register(router.API.Group("/notes"))

	owned := &Resource[note]{
		Service: svc,
		Errors:  router.Errors,
		Scope:   func(c *gin.Context) map[string]any { return map[string]any{"owner": c.Param("owner")} },
		Subject: func(c *gin.Context) string { return c.Param("owner") },
	}
	owned.ReadOnly(router.API.Group("/owners/:owner/notes"))

	return resourceFixture{engine: router.Engine, svc: svc, store: store}
}

func filter(raw string) string {
	return url.QueryEscape(raw)
}

func (f resourceFixture) create(t *testing.T, owner, title string) string {
	t.Helper()
	w := do(t, f.engine, http.MethodPost, "/api/notes", fmt.Sprintf(`{"owner":%q,"title":%q}`, owner, title), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]any)
	return data["id"].(string)
}

func TestResource_CRUD(t *testing.T) {
	f := newResourceFixture(t, false)

	id := f.create(t, "u1", "first")
	f.create(t, "u1", "second")
	f.create(t, "u2", "third")

	t.Run("get", func(t *testing.T) {
		w := do(t, f.engine, http.MethodGet, "/api/notes/"+id, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "first", body["data"].(map[string]any)["title"])
	})

	t.Run("paginated list sorted newest first", func(t *testing.T) {
		w := do(t, f.engine, http.MethodGet, "/api/notes?page=2", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)

		meta := body["meta"].(map[string]any)
		assert.Equal(t, float64(3), meta["total"])
		assert.Equal(t, float64(2), meta["totalPage"])
		assert.Equal(t, float64(2), meta["currentPage"])
		assert.Equal(t, float64(2), meta["limit"])

		data := body["data"].([]any)
		require.Len(t, data, 1)
		assert.Equal(t, "first", data[0].(map[string]any)["title"])
	})

	t.Run("filter and search", func(t *testing.T) {
		w := do(t, f.engine, http.MethodGet, "/api/notes/all?filter="+filter(`{"owner":"u1"}`)+"&q=SEC&searchFields=title", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w)["data"].([]any)
		require.Len(t, data, 1)
		assert.Equal(t, "second", data[0].(map[string]any)["title"])
	})

	t.Run("count", func(t *testing.T) {
		w := do(t, f.engine, http.MethodGet, "/api/notes/count?filter="+filter(`{"owner":"u2"}`), "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), decode(t, w)["data"].(map[string]any)["total"])
	})

	t.Run("patch writes only sent fields", func(t *testing.T) {
		w := do(t, f.engine, http.MethodPatch, "/api/notes/"+id, `{"done":true}`, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := decode(t, w)["data"].(map[string]any)
		assert.Equal(t, true, data["done"])
		assert.Equal(t, "first", data["title"])

		w = do(t, f.engine, http.MethodPatch, "/api/notes/"+id, `{"done":false}`, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, decode(t, w)["data"].(map[string]any)["done"])
	})

	t.Run("bulk update requires a filter", func(t *testing.T) {
		w := do(t, f.engine, http.MethodPatch, "/api/notes", `{"done":true}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, CodeFilterRequired, decode(t, w)["errorCode"])

		w = do(t, f.engine, http.MethodPatch, "/api/notes?filter="+filter(`{"owner":"u1"}`), `{"done":true}`, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(2), decode(t, w)["data"].(map[string]any)["affected"])
	})

	t.Run("delete", func(t *testing.T) {
		w := do(t, f.engine, http.MethodDelete, "/api/notes/"+id, "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = do(t, f.engine, http.MethodDelete, "/api/notes/"+id, "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOTE.NOT_FOUND", decode(t, w)["message"])
	})

	t.Run("bulk delete", func(t *testing.T) {
		w := do(t, f.engine, http.MethodDelete, "/api/notes?filter="+filter(`{"owner":"u2"}`), "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), decode(t, w)["data"].(map[string]any)["affected"])
	})
}

func TestResource_Errors(t *testing.T) {
	f := newResourceFixture(t, false)
	f.create(t, "u1", "taken")

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		code   string
	}{
		{"missing record", http.MethodGet, "/api/notes/nope", "", http.StatusNotFound, "NOT_FOUND"},
		{"bad page", http.MethodGet, "/api/notes?page=0", "", http.StatusBadRequest, "QUERY.PAGE_INVALID"},
		{"bad filter", http.MethodGet, "/api/notes?filter=%5B1%5D", "", http.StatusBadRequest, "QUERY.FILTER_INVALID"},
		{"search not allowed", http.MethodGet, "/api/notes?q=x&searchFields=owner", "", http.StatusBadRequest, "QUERY.SEARCH_FIELD_INVALID"},
		{"unknown filter field", http.MethodGet, "/api/notes?filter="+filter(`{"secret":1}`), "", http.StatusBadRequest, bunstore.CodeFilterField},
		{"body not an object", http.MethodPost, "/api/notes", `[1]`, http.StatusBadRequest, CodeBodyInvalid},
		{"unknown body field", http.MethodPost, "/api/notes", `{"nope":1}`, http.StatusBadRequest, CodeBodyInvalid},
		{"duplicate", http.MethodPost, "/api/notes", `{"owner":"u2","title":"taken"}`, http.StatusConflict, "DUPLICATE"},
		{"no route", http.MethodGet, "/api/nowhere", "", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, f.engine, tt.method, tt.target, tt.body, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode(t, w)["errorCode"])
		})
	}
}

func TestResource_ScopedCachedList(t *testing.T) {
	f := newResourceFixture(t, true)
	f.create(t, "u1", "a")
	f.create(t, "u2", "b")

	list := func() []any {
		w := do(t, f.engine, http.MethodGet, "/api/owners/u1/notes/all", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		return decode(t, w)["data"].([]any)
	}

	require.Len(t, list(), 1)

	// Written behind the service's back, so the cached entry stays.
	_, err := f.store.Insert(context.Background(), &note{Owner: "u1", Title: "direct", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.Len(t, list(), 1)

	f.create(t, "u2", "c")
	assert.Len(t, list(), 1, "writes for another owner keep the entry")

	f.create(t, "u1", "d")
	assert.Len(t, list(), 3, "writes for the owner drop the entry")

	w := do(t, f.engine, http.MethodGet, "/api/owners/u1/notes/all?filter="+filter(`{"owner":"u2"}`), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"].([]any), 3, "the path scope wins over the query filter")
}

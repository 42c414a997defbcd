package httpapi

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crud-service/auth"
	"github.com/goliatone/go-crud-service/reqctx"
)

var (
	admin    = &auth.Account{ID: "a1", Email: "root@example.com", Name: "Root", Role: auth.RoleAdmin, IsActive: true}
	reader   = &auth.Account{ID: "u1", Email: "bob@example.com", Name: "Bob", Role: auth.RoleUser, IsActive: true, Permissions: []auth.Permission{"post:read"}}
	inactive = &auth.Account{ID: "u2", Email: "eve@example.com", Role: auth.RoleUser, IsActive: false, Permissions: []auth.Permission{"post:read"}}
)

func guardedEngine(t *testing.T, v TokenVerifier, guards ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	f := testFilter()
	e := testEngine(f)
	chain := append([]gin.HandlerFunc{Authenticate(v, f), ViewerContext()}, guards...)
	chain = append(chain, func(c *gin.Context) {
		st, _ := State(c)
		Respond(c, http.StatusOK, gin.H{"viewer": st.Viewer(), "trace": st.Waypoints()})
	})
	e.GET("/guarded", chain...)
	return e
}

func verifier() stubVerifier {
	return stubVerifier{accounts: map[string]*auth.Account{
		"admin": admin, "reader": reader, "inactive": inactive,
	}}
}

func TestAuthenticate(t *testing.T) {
	e := guardedEngine(t, verifier())

	t.Run("missing token", func(t *testing.T) {
		w := do(t, e, http.MethodGet, "/guarded", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		w := do(t, e, http.MethodGet, "/guarded", "", bearer("nope"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, MsgTokenInvalid, decode(t, w)["message"])
	})

	t.Run("expired token", func(t *testing.T) {
		expired := guardedEngine(t, stubVerifier{err: auth.ErrTokenExpired})
		w := do(t, expired, http.MethodGet, "/guarded", "", bearer("old"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, MsgTokenExpired, decode(t, w)["message"])
	})

	t.Run("viewer copied into state", func(t *testing.T) {
		w := do(t, e, http.MethodGet, "/guarded", "", bearer("reader"))
		require.Equal(t, http.StatusOK, w.Code)

		data := decode(t, w)["data"].(map[string]any)
		viewer := data["viewer"].(map[string]any)
		assert.Equal(t, "u1", viewer["viewerId"])
		assert.Equal(t, "bob@example.com", viewer["viewerEmail"])
		assert.Equal(t, []any{string(reqctx.OnRequest), string(reqctx.AfterGuard)}, data["trace"])
	})
}

func TestRequireRoles(t *testing.T) {
	e := guardedEngine(t, verifier(), RequireRoles(testFilter(), auth.RoleAdmin))

	assert.Equal(t, http.StatusOK, do(t, e, http.MethodGet, "/guarded", "", bearer("admin")).Code)

	w := do(t, e, http.MethodGet, "/guarded", "", bearer("reader"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, MsgInsufficientAuthority, decode(t, w)["message"])
}

func TestRequirePermissions(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		perms   []auth.Permission
		status  int
		message string
	}{
		{"granted", "reader", []auth.Permission{"post:read"}, http.StatusOK, ""},
		{"admin bypass", "admin", []auth.Permission{"account:manage"}, http.StatusOK, ""},
		{"missing", "reader", []auth.Permission{"post:read", "post:delete"}, http.StatusForbidden, MsgInsufficientAuthority},
		{"inactive", "inactive", []auth.Permission{"post:read"}, http.StatusForbidden, MsgAccountNotActive},
		{"no requirement", "inactive", nil, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := guardedEngine(t, verifier(), RequirePermissions(testFilter(), tt.perms...))
			w := do(t, e, http.MethodGet, "/guarded", "", bearer(tt.token))
			assert.Equal(t, tt.status, w.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, decode(t, w)["message"])
			}
		})
	}
}

func TestRequireWhitelist(t *testing.T) {
	e := guardedEngine(t, verifier(), RequireWhitelist(testFilter(), []auth.Role{auth.RoleAdmin}, []string{"bob@example.com"}))

	assert.Equal(t, http.StatusOK, do(t, e, http.MethodGet, "/guarded", "", bearer("admin")).Code)
	assert.Equal(t, http.StatusOK, do(t, e, http.MethodGet, "/guarded", "", bearer("reader")).Code)
	assert.Equal(t, http.StatusForbidden, do(t, e, http.MethodGet, "/guarded", "", bearer("inactive")).Code)
}

func TestBearerToken(t *testing.T) {
	e := gin.New()
	e.GET("/", func(c *gin.Context) { c.String(http.StatusOK, BearerToken(c)) })

	assert.Equal(t, "abc", do(t, e, http.MethodGet, "/", "", map[string]string{"Authorization": "bearer abc"}).Body.String())
	assert.Empty(t, do(t, e, http.MethodGet, "/", "", map[string]string{"Authorization": "Basic abc"}).Body.String())
}

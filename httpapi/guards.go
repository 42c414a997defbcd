package httpapi

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/goliatone/go-crud-service/apperror"
	"github.com/goliatone/go-crud-service/auth"
	"github.com/goliatone/go-crud-service/reqctx"
)

const viewerKey = "viewer"

// Authorization failure messages.
const (
	MsgInsufficientAuthority = "AUTHORIZATION.INSUFFICIENT_AUTHORITY"
	MsgAccountNotActive      = "AUTHORIZATION.ACCOUNT_NOT_ACTIVE"
	MsgTokenExpired          = "AUTHENTICATION.TOKEN_EXPIRED"
	MsgTokenInvalid          = "AUTHENTICATION.TOKEN_INVALID"
)

// TokenVerifier resolves a bearer token to an account.
type TokenVerifier interface {
	Verify(token string) (*auth.Account, error)
}

// Viewer returns the authenticated account of c.
func Viewer(c *gin.Context) (*auth.Account, bool) {
	v, ok := c.Get(viewerKey)
	if !ok {
		return nil, false
	}
	acc, ok := v.(*auth.Account)
	return acc, ok && acc != nil
}

// SetViewer stores acc as the authenticated account of c.
func SetViewer(c *gin.Context, acc *auth.Account) {
	c.Set(viewerKey, acc)
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Authenticate requires a valid bearer token and stores its account.
func Authenticate(v TokenVerifier, filter *ErrorFilter) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			filter.Respond(c, apperror.Unauthorized())
			return
		}
		acc, err := v.Verify(token)
		if err != nil {
			msg := MsgTokenInvalid
			if errors.Is(err, auth.ErrTokenExpired) {
				msg = MsgTokenExpired
			}
			filter.Respond(c, apperror.Unauthorized(msg))
			return
		}
		SetViewer(c, acc)
		c.Next()
	}
}

// ViewerContext copies the viewer identity into the request state and marks
// the afterGuard waypoint. It runs after Authenticate.
func ViewerContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		st, ok := State(c)
		if ok {
			if acc, found := Viewer(c); found {
				st.SetViewer(reqctx.Viewer{ID: acc.ID, Name: acc.Name, Email: acc.Email})
			}
			st.AddWaypoint(reqctx.AfterGuard)
		}
		c.Next()
	}
}

// RequireRoles lets through viewers holding one of roles. No roles means no
// restriction.
func RequireRoles(filter *ErrorFilter, roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(roles) == 0 {
			c.Next()
			return
		}
		acc, ok := Viewer(c)
		if !ok || !acc.HasRole(roles...) {
			filter.Respond(c, apperror.Forbidden(MsgInsufficientAuthority))
			return
		}
		c.Next()
	}
}

// RequirePermissions lets through active viewers holding every permission.
// Admins hold every permission.
func RequirePermissions(filter *ErrorFilter, perms ...auth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(perms) == 0 {
			c.Next()
			return
		}
		acc, ok := Viewer(c)
		if !ok {
			filter.Respond(c, apperror.Forbidden(MsgInsufficientAuthority))
			return
		}
		if !acc.IsActive {
			filter.Respond(c, apperror.Forbidden(MsgAccountNotActive))
			return
		}
		if acc.IsAdmin() {
			c.Next()
			return
		}
		if missing, found := acc.MissingPermission(perms...); found {
			filter.logger().DebugContext(c.Request.Context(), "permission denied",
				"permission", missing,
				"viewerId", acc.ID,
			)
			filter.Respond(c, apperror.Forbidden(MsgInsufficientAuthority))
			return
		}
		c.Next()
	}
}

// RequireWhitelist lets through viewers holding one of roles or whose email
// is listed.
func RequireWhitelist(filter *ErrorFilter, roles []auth.Role, emails []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, ok := Viewer(c)
		if !ok {
			filter.Respond(c, apperror.Forbidden(MsgInsufficientAuthority))
			return
		}
		if acc.HasRole(roles...) {
			c.Next()
			return
		}
		for _, e := range emails {
			if e == acc.Email {
				c.Next()
				return
			}
		}
		filter.Respond(c, apperror.Forbidden(MsgInsufficientAuthority))
	}
}

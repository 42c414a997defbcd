package acl

import (
	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-crud-service/auth"
	"github.com/goliatone/go-crud-service/httpapi"
	"github.com/goliatone/go-crud-service/query"
)

// Permissions guarding the ACL routes.
var (
	PermRead   = auth.MakePerm(auth.ModuleAccount, auth.ActionRead, "acl")
	PermManage = auth.MakePerm(auth.ModuleAccount, auth.ActionManage, "acl")
)

// SearchFields are matched by the q parameter.
var SearchFields = []string{"note"}

// Routes mounts the ACL endpoints on r:
//
//	/user-acls                   full CRUD, needs PermManage
//	/accounts/:accountId/acls    read only, scoped to the account, needs PermRead
func Routes(r *httpapi.Router, svc *Service, v httpapi.TokenVerifier) {
	admin := r.Protected("/user-acls", v)
	admin.Use(httpapi.RequirePermissions(r.Errors, PermManage))
	(&httpapi.Resource[UserACL]{
		Service: svc,
		Errors:  r.Errors,
		Query:   query.ParseOptions{SearchFields: SearchFields},
	}).Register(admin)

	scoped := r.Protected("/accounts/:accountId/acls", v)
	scoped.Use(httpapi.RequirePermissions(r.Errors, PermRead))
	(&httpapi.Resource[UserACL]{
		Service: svc,
		Errors:  r.Errors,
		Query:   query.ParseOptions{SearchFields: SearchFields},
		Scope: func(c *gin.Context) map[string]any {
			return map[string]any{"accountId": c.Param("accountId")}
		},
		Subject: func(c *gin.Context) string { return c.Param("accountId") },
	}).ReadOnly(scoped)
}

package acl

import (
	"context"
	"log/slog"
	"time"

	"github.com/goliatone/go-crud-service/apperror"
	"github.com/goliatone/go-crud-service/cache"
	"github.com/goliatone/go-crud-service/query"
	"github.com/goliatone/go-crud-service/reqctx"
	"github.com/goliatone/go-crud-service/service"
)

// Alias names the ACL resource in error codes and cache keys.
const Alias = "UserAclService"

// CacheModel is the cache key prefix for ACL entries.
const CacheModel = "user_acl"

// Service is the ACL pipeline.
type Service = service.Service[UserACL]

// Deps are the collaborators NewService needs.
type Deps struct {
	Store  service.Store[UserACL]
	Cache  *cache.Helper
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewService builds the ACL pipeline. Drafts are validated and stamped with
// the acting viewer and timestamps before every write, and cache entries are
// grouped per account.
func NewService(deps Deps) (*Service, error) {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	a := auditor{now: now}

	return service.New(service.Config[UserACL]{
		Alias: Alias,
		Store: deps.Store,
		Hooks: service.Hooks[UserACL]{
			PreCreateOrUpdate: a.stamp,
			PreUpdateBy:       a.stampBulk,
		},
		TouchColumns:     []string{"updated_by", "updated_at"},
		ImmutableColumns: []string{"id", "created_by", "created_at"},
		Cache:            deps.Cache,
		SubjectOf:        SubjectOf,
		Logger:           deps.Logger,
	})
}

// SubjectOf groups cache entries by account.
func SubjectOf(u *UserACL) string {
	if u == nil {
		return ""
	}
	return u.AccountID
}

type auditor struct {
	now func() time.Time
}

func viewerOf(ctx context.Context, opts service.Options) string {
	if id := opts.ViewerID(); id != "" {
		return id
	}
	return reqctx.ViewerID(ctx)
}

func (a auditor) stamp(ctx context.Context, draft, existing *UserACL, opts service.Options) (*UserACL, error) {
	if draft == nil {
		return nil, apperror.Validation(nil, "ACL.DRAFT_REQUIRED")
	}

	out := *draft
	viewer := viewerOf(ctx, opts)
	ts := a.now().UTC()

	if existing == nil {
		if err := out.ValidateCreate(); err != nil {
			return nil, validationError(err)
		}
		out.ID = ""
		out.CreatedBy = viewer
		out.CreatedAt = ts
	} else {
		if err := out.ValidateUpdate(); err != nil {
			return nil, validationError(err)
		}
		out.CreatedBy = existing.CreatedBy
		out.CreatedAt = existing.CreatedAt
	}
	out.UpdatedBy = viewer
	out.UpdatedAt = ts
	return &out, nil
}

func (a auditor) stampBulk(ctx context.Context, _ query.Filter, draft *UserACL, opts service.Options) (*UserACL, error) {
	return a.stamp(ctx, draft, &UserACL{}, opts)
}

func validationError(err error) error {
	if appErr, ok := apperror.FromValidation(err); ok {
		return appErr
	}
	return err
}

// Package service implements the generic CRUD pipeline shared by every
// resource.
//
// A Service[T] is assembled from capability modules that share one store,
// one set of hooks and one optional cache helper:
//
//   - Reader: GetOneBy, FindOneBy, GetByID, GetOne, Exists
//   - Lister: List, ListPaginate, Count
//   - Writer: Create, UpdateOneBy, UpdateByID, UpdateBy
//   - Deleter: DeleteOneBy, DeleteByID, DeleteBy
//   - Cached: CachedList, CachedListPaginate, CachedGetByID
//
// Criteria passed to the *By methods use the flat filter syntax of
// query.Translator ("age_GTE", "ids", ...).
//
// # Hooks
//
// Hooks are plain function fields. A nil hook keeps the default: create and
// single update route through PreCreateOrUpdate and PostCreateOrUpdate, with
// a nil existing record on create. Options.SkipHooks bypasses all of them
// and persists the input as given.
//
//	svc, err := service.New(service.Config[UserACL]{
//		Alias: "UserAclService",
//		Store: bunstore.New[UserACL](db),
//		Hooks: service.Hooks[UserACL]{
//			PreCreateOrUpdate: stampAudit,
//		},
//		Cache:     cache.NewHelper(backend, "user_acl"),
//		SubjectOf: func(a *UserACL) string { return a.AccountID },
//	})
//
// # Errors
//
// A read that matches nothing returns apperror.NotFound with the message
// "{ALIAS}.NOT_FOUND" unless Options.SkipThrow is set. Store errors are
// returned unchanged.
//
// # Cache
//
// Successful writes invalidate the cache. With SubjectOf set, single record
// writes drop the entries of the subjects they touched (both old and new on
// update) and bulk writes drop the whole alias. Plain List and ListPaginate
// never read or write the cache.
package service

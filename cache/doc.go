// Package cache provides the cache port, key derivation and invalidation
// helpers used by the service pipeline.
//
// # Overview
//
// This package exports:
//
//   - CacheService: a byte oriented cache port implemented by an in process
//     sturdyc backend and a redis backend (see NewCacheService)
//   - Key / BuildKey: deterministic key derivation
//   - Helper: per model read-through caching and prefix invalidation
//   - GetOrFetch / Fetch: generic read-through wrappers storing JSON values
//
// # Key Layout
//
// Keys are the present parts of {model, op, subject, params} joined by ":".
// Params are JSON encoded then base64 encoded so the segment never contains
// the separator:
//
//	user_acl:getList:u1:eyJsaW1pdCI6MTAsInBhZ2UiOjF9
//	user_acl:getOne:u1
//
// encoding/json writes map keys in sorted order, so two param maps with the
// same content always produce the same key. Struct params follow field
// declaration order.
//
// # Invalidation
//
// Invalidation is coarse: a mutation for subject u1 removes
// "user_acl:getList:u1" and every key under "user_acl:getList:u1:", and the
// same for getOne. Matching on the trailing separator keeps u1 from
// sweeping u10. There are no generation counters or per field invalidation.
//
// # Error Handling
//
// Cache operations are best effort. Helper logs and swallows every backend
// failure so a cache outage never fails a request, and a value that no longer
// decodes is treated as a miss and removed.
//
//	helper := cache.NewHelper(svc, "user_acl", cache.WithTTL(5*time.Minute), cache.WithLogger(logger))
//	acls, err := cache.Fetch(ctx, helper, helper.ListKey("u1", spec.Params()), func(ctx context.Context) ([]UserACL, error) {
//		return store.Find(ctx, filter, opts)
//	})
package cache

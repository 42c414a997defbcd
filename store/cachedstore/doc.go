// Package cachedstore decorates a service.Store with read-through caching.
//
// # Overview
//
// The decorator wraps any service.Store[T] and intercepts the read methods
// (FindOne, Find, Count, Exists). Results are stored in a cache.CacheService
// under keys built from the operation, the filter and the find options.
// Writes pass through to the wrapped store and then drop the cached reads.
//
// It sits below the service pipeline, so it caches storage reads whatever
// the caller: hooks, existence checks and bulk paths all benefit. The
// pipeline's own per subject cache keeps working on top of it.
//
// # Basic Usage
//
//	base, _ := bunstore.New[UserACL](db)
//	cached := cachedstore.New[UserACL](base, backend,
//		cachedstore.WithTTL(time.Minute),
//	)
//	svc, _ := service.New(service.Config[UserACL]{Store: cached, ...})
//
// # Invalidation
//
// Every key the decorator writes is tracked in an in process registry. Any
// successful write removes every tracked key of the namespace, since a new or
// changed row can enter or leave any cached result.
//
// Reads can also be tagged through the context:
//
//	ctx = cachedstore.WithCacheTags(ctx, "account:acc-1")
//	rows, _ := cached.Find(ctx, filter, opts)
//	...
//	cached.InvalidateTags(ctx, "account:acc-1")
//
// InvalidateTags drops only the keys recorded under those tags, which lets
// code that writes around the decorator, such as raw SQL or other processes,
// target what it changed.
//
// # Consistency
//
// The registry lives in process. With a shared backend such as Redis, writes
// made by another process only become visible once the TTL expires.
//
// # Errors
//
// Backend failures never surface: a failed lookup falls through to the
// wrapped store and a failed delete is logged.
package cachedstore

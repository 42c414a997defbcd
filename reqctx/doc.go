// Package reqctx carries per request state through context.Context.
//
// The HTTP boundary creates a State when a request arrives and stores it with
// With. Everything downstream (guards, services, the logger) reads it back
// with From. The state records the request id, HTTP metadata, the viewer once
// authentication ran, and an ordered set of waypoints describing how far the
// request got:
//
//	st := reqctx.New(r.Header.Get("X-Request-Id"))
//	ctx := reqctx.With(r.Context(), st)
//	...
//	reqctx.AddWaypoint(ctx, reqctx.AfterGuard)
//
// Waypoints are append only and adding one twice is a no-op. The controller,
// service and repository waypoints are verbose and only recorded when the
// state was created WithVerboseTrace(true).
package reqctx

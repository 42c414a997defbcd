// Package httpapi is the gin boundary of the service.
//
// Every request gets a reqctx.State carrying its id, HTTP metadata, viewer
// and waypoint trace. Handlers report failures with c.Error; the error
// filter resolves them to typed errors and writes the serialized error body.
// Successful responses are wrapped in an Envelope:
//
//	{"success":true,"statusCode":200,"message":"Success","data":[...],
//	 "meta":{"total":42,"totalPage":3,"currentPage":1,"limit":20},
//	 "timestamp":"2024-01-01T00:00:00Z"}
//
// Resource exposes a service.Service as list, count, get, create, update and
// delete routes. Guards (RequireRoles, RequirePermissions, RequireWhitelist)
// run after Authenticate and read the viewer it stored.
package httpapi

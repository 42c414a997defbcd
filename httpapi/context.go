package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-crud-service/logging"
	"github.com/goliatone/go-crud-service/reqctx"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-Id"

// ContextOptions configures RequestContext.
type ContextOptions struct {
	// VerboseTrace records the controller, service and repository waypoints.
	VerboseTrace bool
	// TraceLog logs the request state when the response is written.
	TraceLog bool
	Logger   *slog.Logger
}

// RequestContext creates the request state, stores it in the request context
// and echoes the request id. It must run before any other middleware that
// reads the state.
func RequestContext(opts ContextOptions) gin.HandlerFunc {
	logger := logging.Component(opts.Logger, "RequestContext")

	return func(c *gin.Context) {
		st := reqctx.New(c.GetHeader(HeaderRequestID), reqctx.WithVerboseTrace(opts.VerboseTrace))
		st.SetHTTP(reqctx.HTTPInfo{
			Method:    c.Request.Method,
			URL:       c.Request.URL.RequestURI(),
			Protocol:  c.Request.Proto,
			Host:      c.Request.Host,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Origin:    c.GetHeader("Origin"),
			Referer:   c.Request.Referer(),
		})
		st.AddWaypoint(reqctx.OnRequest)

		c.Request = c.Request.WithContext(reqctx.With(c.Request.Context(), st))
		c.Header(HeaderRequestID, st.RequestID())

		c.Next()

		if len(c.Errors) == 0 && c.Writer.Status() < 400 {
			st.AddWaypoint(reqctx.OnResponse)
		}
		st.Finish()
		if opts.TraceLog {
			logger.Log(c.Request.Context(), logging.LevelHTTP, "request finished", "state", st.Snapshot())
		}
	}
}

// State returns the request state of c.
func State(c *gin.Context) (*reqctx.State, bool) {
	return reqctx.From(c.Request.Context())
}

// Controller marks the controller waypoint and returns the request context.
// Handlers pass the result down to the service layer.
func Controller(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	reqctx.AddWaypoint(ctx, reqctx.Controller)
	return ctx
}

// elapsed is the time since the request started, or since start when the
// request carries no state.
func elapsed(c *gin.Context, start time.Time) time.Duration {
	if st, ok := State(c); ok {
		return time.Since(st.StartedAt())
	}
	return time.Since(start)
}

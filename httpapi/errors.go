package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/goliatone/go-crud-service/apperror"
	"github.com/goliatone/go-crud-service/logging"
	"github.com/goliatone/go-crud-service/reqctx"
	"github.com/goliatone/go-crud-service/store/bunstore"
)

// StatusError is a failure raised with a bare HTTP status, the way framework
// level code such as the rate limiter reports it. Payload is the body that
// code wanted to send.
type StatusError struct {
	Status  int
	Payload any
}

func (e *StatusError) Error() string {
	if msg, ok := e.Payload.(string); ok {
		return msg
	}
	return http.StatusText(e.Status)
}

// NewStatusError returns a StatusError.
func NewStatusError(status int, payload any) *StatusError {
	return &StatusError{Status: status, Payload: payload}
}

// ErrorFilter turns any error raised while handling a request into a typed
// error and writes its serialized form.
type ErrorFilter struct {
	Environment  string
	IncludeStack bool
	Logger       *slog.Logger
}

// NewErrorFilter returns a filter for the given environment. Stacks are only
// included outside production.
func NewErrorFilter(env string, includeStack bool, logger *slog.Logger) *ErrorFilter {
	return &ErrorFilter{
		Environment:  env,
		IncludeStack: includeStack,
		Logger:       logging.Component(logger, "ErrorFilter"),
	}
}

// Resolve maps err to a typed error. Typed errors pass through; validation
// failures become 400; bare statuses keep their status; driver failures
// become Duplicate or System; anything else is a System error whose detail
// stays in the logs.
func (f *ErrorFilter) Resolve(ctx context.Context, err error) *apperror.Error {
	if e, ok := apperror.As(err); ok {
		return e
	}
	if e, ok := apperror.FromValidation(err); ok {
		return e
	}

	var se *StatusError
	if errors.As(err, &se) {
		return f.fromStatus(se)
	}

	if bunstore.IsDuplicateKey(err) {
		return apperror.Duplicate()
	}
	if bunstore.IsDriverError(err) {
		f.logger().DebugContext(ctx, "driver error", "error", err)
		return apperror.System(err.Error())
	}

	f.logger().ErrorContext(ctx, "unknown error", "error", err, "stack", fmt.Sprintf("%+v", err))
	return apperror.System()
}

func (f *ErrorFilter) fromStatus(se *StatusError) *apperror.Error {
	if se.Status == http.StatusTooManyRequests {
		return apperror.TooManyRequests(se.Error())
	}

	switch p := se.Payload.(type) {
	case map[string]any:
		msg, _ := p["message"].(string)
		if msg == "" {
			msg = http.StatusText(se.Status)
		}
		return apperror.New("HttpException", msg, se.Status, codeForStatus(se.Status), apperror.WithContext(p))
	case gin.H:
		return f.fromStatus(&StatusError{Status: se.Status, Payload: map[string]any(p)})
	}

	return apperror.New("BaseError", fmt.Sprint(se.Payload), se.Status, apperror.CodeUnknown,
		apperror.WithContext(map[string]any{"originalResponse": se.Payload}),
	)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperror.CodeValidation
	case http.StatusUnauthorized:
		return apperror.CodeUnauthorized
	case http.StatusForbidden:
		return apperror.CodeForbidden
	case http.StatusNotFound:
		return apperror.CodeNotFound
	case http.StatusConflict:
		return apperror.CodeDuplicate
	case http.StatusTooManyRequests:
		return apperror.CodeTooManyRequests
	}
	if status >= http.StatusInternalServerError {
		return apperror.CodeSystem
	}
	return apperror.CodeUnknown
}

func (f *ErrorFilter) logger() *slog.Logger {
	if f.Logger == nil {
		f.Logger = logging.Component(nil, "ErrorFilter")
	}
	return f.Logger
}

// Respond resolves err and writes it, aborting the chain.
func (f *ErrorFilter) Respond(c *gin.Context, err error) {
	e := f.Resolve(c.Request.Context(), err)
	reqctx.AddWaypoint(c.Request.Context(), reqctx.OnError)

	f.logger().DebugContext(c.Request.Context(), "request failed",
		"status", e.StatusCode,
		"errorCode", e.Code,
		"error", e.Message,
	)
	c.AbortWithStatusJSON(e.StatusCode, e.Serialize(apperror.SerializeOptions{
		IncludeStack: f.IncludeStack,
		Environment:  f.Environment,
	}))
}

// Middleware writes the last error handlers attached with c.Error when
// nothing was written yet.
func (f *ErrorFilter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		f.Respond(c, c.Errors.Last().Err)
	}
}

// Recovery turns a panic into a System error response.
func (f *ErrorFilter) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			f.logger().ErrorContext(c.Request.Context(), "panic recovered", "panic", rec)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			f.Respond(c, errors.WithStack(err))
		}()
		c.Next()
	}
}

package apperror

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Error codes shared by every component. Codes are stable identifiers that
// clients can switch on, messages are for humans.
const (
	CodeSuccess         = "000000"
	CodeUnknown         = "999999"
	CodeSystem          = "990001"
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeDuplicate       = "DUPLICATE"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
)

// DefaultMessages maps codes to the message used when a constructor is
// called without one.
var DefaultMessages = map[string]string{
	CodeSuccess:         "Success",
	CodeUnknown:         "Unknown error",
	CodeSystem:          "Uh oh, something went wrong on our side",
	CodeValidation:      "Invalid input data",
	CodeNotFound:        "Data not found",
	CodeDuplicate:       "Duplicate information",
	CodeTooManyRequests: "Too many requests, please try again later",
	CodeUnauthorized:    "You are not signed in",
	CodeForbidden:       "You do not have permission to access this resource",
}

// Error is the typed failure every layer raises. It carries the HTTP status
// the boundary should answer with, a machine readable code and free form
// context for debugging.
type Error struct {
	Name        string
	Message     string
	StatusCode  int
	Code        string
	Operational bool
	Context     map[string]any
	Metadata    map[string]any
	Cause       error

	trace error
}

// Option customizes an Error at construction time.
type Option func(*Error)

// WithContext merges debugging context into the error.
func WithContext(ctx map[string]any) Option {
	return func(e *Error) {
		for k, v := range ctx {
			e.Context[k] = v
		}
	}
}

// WithMetadata merges metadata, overriding the defaults.
func WithMetadata(md map[string]any) Option {
	return func(e *Error) {
		for k, v := range md {
			e.Metadata[k] = v
		}
	}
}

// WithCause chains the underlying error.
func WithCause(err error) Option {
	return func(e *Error) {
		e.Cause = err
	}
}

// WithCode overrides the error code.
func WithCode(code string) Option {
	return func(e *Error) {
		e.Code = code
	}
}

// WithOperational marks the error as expected (true) or as a programmer
// error (false).
func WithOperational(operational bool) Option {
	return func(e *Error) {
		e.Operational = operational
	}
}

// New builds an Error. Status defaults to 500 and code to the system code.
func New(name, message string, status int, code string, opts ...Option) *Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if code == "" {
		code = CodeSystem
	}
	if name == "" {
		name = "BaseError"
	}

	message = strings.TrimSpace(message)
	e := &Error{
		Name:        name,
		Message:     message,
		StatusCode:  status,
		Code:        code,
		Operational: true,
		Context:     map[string]any{},
		Metadata: map[string]any{
			"timestamp": time.Now().UTC(),
		},
		trace: errors.New(message),
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

func messageOr(message []string, code string) string {
	if len(message) > 0 && strings.TrimSpace(message[0]) != "" {
		return message[0]
	}
	return DefaultMessages[code]
}

// NotFound reports a missing record. The optional message usually carries
// a resource scoped code such as "USER_ACL.NOT_FOUND".
func NotFound(message ...string) *Error {
	return New("NotFoundError", messageOr(message, CodeNotFound), http.StatusNotFound, CodeNotFound)
}

// Duplicate reports a uniqueness conflict.
func Duplicate(message ...string) *Error {
	return New("DuplicateError", messageOr(message, CodeDuplicate), http.StatusConflict, CodeDuplicate)
}

// TooManyRequests reports a rate limit rejection.
func TooManyRequests(message ...string) *Error {
	return New("TooManyRequestsError", messageOr(message, CodeTooManyRequests), http.StatusTooManyRequests, CodeTooManyRequests)
}

// System reports an unexpected failure.
func System(message ...string) *Error {
	return New("SystemError", messageOr(message, CodeSystem), http.StatusInternalServerError, CodeSystem)
}

// Unauthorized reports a missing or invalid credential.
func Unauthorized(message ...string) *Error {
	return New("UnauthorizedError", messageOr(message, CodeUnauthorized), http.StatusUnauthorized, CodeUnauthorized)
}

// Forbidden reports an authenticated caller lacking rights.
func Forbidden(message ...string) *Error {
	return New("ForbiddenError", messageOr(message, CodeForbidden), http.StatusForbidden, CodeForbidden)
}

// Error implements error.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Stack renders the call stack captured when the error was built.
func (e *Error) Stack() string {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	if st, ok := e.trace.(stackTracer); ok {
		return fmt.Sprintf("%s%+v", e.Name+": "+e.Message, st.StackTrace())
	}
	return ""
}

// As returns the first *Error in the chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	e, ok := As(err)
	return ok && e.StatusCode == http.StatusNotFound
}

// SerializeOptions tunes Serialize.
type SerializeOptions struct {
	IncludeStack bool
	Environment  string
}

// Serialize produces the JSON body sent to clients.
func (e *Error) Serialize(opts SerializeOptions) map[string]any {
	metadata := make(map[string]any, len(e.Metadata)+1)
	if opts.Environment != "" {
		metadata["environment"] = opts.Environment
	}
	for k, v := range e.Metadata {
		metadata[k] = v
	}

	out := map[string]any{
		"name":          e.Name,
		"message":       e.Message,
		"statusCode":    e.StatusCode,
		"errorCode":     e.Code,
		"isOperational": e.Operational,
		"context":       e.Context,
		"metadata":      metadata,
	}

	if opts.IncludeStack {
		out["stack"] = e.Stack()
	}

	if e.Cause != nil {
		if cause, ok := e.Cause.(*Error); ok {
			out["cause"] = cause.Serialize(opts)
		} else {
			c := map[string]any{"message": e.Cause.Error()}
			if opts.IncludeStack {
				c["stack"] = fmt.Sprintf("%+v", e.Cause)
			}
			out["cause"] = c
		}
	}

	return out
}

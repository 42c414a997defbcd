package httpapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crud-service/apperror"
	"github.com/goliatone/go-crud-service/logging"
)

func TestErrorFilter_Resolve(t *testing.T) {
	f := testFilter()

	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{
			name:   "typed error passes through",
			err:    apperror.NotFound("WIDGET.NOT_FOUND"),
			status: http.StatusNotFound,
			code:   apperror.CodeNotFound,
		},
		{
			name:   "wrapped typed error",
			err:    pkgerrors.Wrap(apperror.Forbidden(), "guard"),
			status: http.StatusForbidden,
			code:   apperror.CodeForbidden,
		},
		{
			name:   "ozzo validation errors",
			err:    validation.Errors{"name": validation.NewError("validation_required", "NAME.REQUIRED")},
			status: http.StatusBadRequest,
			code:   "NAME.REQUIRED",
		},
		{
			name:    "rate limit status",
			err:     NewStatusError(http.StatusTooManyRequests, "slow down"),
			status:  http.StatusTooManyRequests,
			code:    apperror.CodeTooManyRequests,
			message: "slow down",
		},
		{
			name:    "non object payload",
			err:     NewStatusError(http.StatusBadGateway, "upstream"),
			status:  http.StatusBadGateway,
			code:    apperror.CodeUnknown,
			message: "upstream",
		},
		{
			name:    "object payload",
			err:     NewStatusError(http.StatusConflict, gin.H{"message": "taken"}),
			status:  http.StatusConflict,
			code:    apperror.CodeDuplicate,
			message: "taken",
		},
		{
			name:   "postgres unique violation",
			err:    pkgerrors.Wrap(&pq.Error{Code: "23505", Message: "dup"}, "insert"),
			status: http.StatusConflict,
			code:   apperror.CodeDuplicate,
		},
		{
			name:   "sqlite unique violation",
			err:    sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique},
			status: http.StatusConflict,
			code:   apperror.CodeDuplicate,
		},
		{
			name:    "other driver error keeps its message",
			err:     &pq.Error{Code: "42P01", Message: "relation missing"},
			status:  http.StatusInternalServerError,
			code:    apperror.CodeSystem,
			message: "pq: relation missing",
		},
		{
			name:    "unknown error hides detail",
			err:     errors.New("secret detail"),
			status:  http.StatusInternalServerError,
			code:    apperror.CodeSystem,
			message: apperror.DefaultMessages[apperror.CodeSystem],
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.Resolve(context.Background(), tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.status, got.StatusCode)
			assert.Equal(t, tt.code, got.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, got.Message)
			}
		})
	}
}

func TestErrorFilter_Middleware(t *testing.T) {
	e := testEngine(testFilter())
	e.GET("/missing", func(c *gin.Context) {
		_ = c.Error(apperror.NotFound("WIDGET.NOT_FOUND"))
	})

	w := do(t, e, http.MethodGet, "/missing", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	body := decode(t, w)
	assert.Equal(t, "WIDGET.NOT_FOUND", body["message"])
	assert.Equal(t, apperror.CodeNotFound, body["errorCode"])
	assert.Equal(t, float64(http.StatusNotFound), body["statusCode"])
	metadata, ok := body["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "test", metadata["environment"])
	assert.NotContains(t, body, "stack")
}

func TestErrorFilter_Recovery(t *testing.T) {
	e := testEngine(testFilter())
	e.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})

	w := do(t, e, http.MethodGet, "/boom", "", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, apperror.CodeSystem, body["errorCode"])
	assert.NotContains(t, body["message"], "boom")
}

func TestErrorFilter_IncludeStack(t *testing.T) {
	e := testEngine(NewErrorFilter("development", true, nil))
	e.GET("/fail", func(c *gin.Context) {
		_ = c.Error(apperror.Duplicate())
	})

	body := decode(t, do(t, e, http.MethodGet, "/fail", "", nil))
	assert.Contains(t, body, "stack")
}

func TestErrorFilter_UnknownErrorLogsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Config{Level: "debug", Format: logging.FormatJSON, Output: &buf})
	require.NoError(t, err)

	e := testEngine(NewErrorFilter("test", false, logger))
	e.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("disk on fire"))
	})

	w := do(t, e, http.MethodGet, "/boom", "", map[string]string{HeaderRequestID: "req-42"})
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var logged bool
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if bytes.Contains(line, []byte(`"msg":"unknown error"`)) {
			logged = true
			assert.Contains(t, string(line), `"requestId":"req-42"`)
		}
	}
	assert.True(t, logged, buf.String())
}

package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crud-service/auth"
	"github.com/goliatone/go-crud-service/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier struct {
	accounts map[string]*auth.Account
	err      error
}

func (s stubVerifier) Verify(token string) (*auth.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	acc, ok := s.accounts[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return acc, nil
}

func testFilter() *ErrorFilter {
	return NewErrorFilter("test", false, logging.Discard())
}

// testEngine returns an engine with the request context and error filter
// installed, the way NewRouter chains them.
func testEngine(filter *ErrorFilter) *gin.Engine {
	e := gin.New()
	e.Use(RequestContext(ContextOptions{}), filter.Recovery(), filter.Middleware())
	return e
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

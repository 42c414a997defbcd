package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-crud-service/reqctx"
	"github.com/goliatone/go-crud-service/service"
)

// Envelope wraps every successful response body.
type Envelope struct {
	Success    bool      `json:"success"`
	StatusCode int       `json:"statusCode"`
	Message    string    `json:"message"`
	Data       any       `json:"data"`
	Meta       any       `json:"meta"`
	Timestamp  time.Time `json:"timestamp"`
}

// PageMeta is the meta block of a paginated response.
type PageMeta struct {
	Total       int `json:"total"`
	TotalPage   int `json:"totalPage"`
	CurrentPage int `json:"currentPage"`
	Limit       int `json:"limit"`
}

// NewEnvelope builds an envelope. Success follows the status class.
func NewEnvelope(status int, data any, message string, meta any) Envelope {
	if status == 0 {
		status = http.StatusOK
	}
	if message == "" {
		message = "Success"
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return Envelope{
		Success:    status >= 200 && status < 300,
		StatusCode: status,
		Message:    message,
		Data:       data,
		Meta:       meta,
		Timestamp:  time.Now().UTC(),
	}
}

// Respond writes data wrapped in an envelope.
func Respond(c *gin.Context, status int, data any) {
	if status < http.StatusBadRequest {
		reqctx.AddWaypoint(c.Request.Context(), reqctx.OnResponse)
	}
	c.JSON(status, NewEnvelope(status, data, "", nil))
}

// RespondPage writes a page with its pagination meta.
func RespondPage[T any](c *gin.Context, page service.Page[T]) {
	reqctx.AddWaypoint(c.Request.Context(), reqctx.OnResponse)
	c.JSON(http.StatusOK, NewEnvelope(http.StatusOK, page.Data, "", PageMeta{
		Total:       page.Total,
		TotalPage:   page.TotalPages,
		CurrentPage: page.Page,
		Limit:       page.Limit,
	}))
}

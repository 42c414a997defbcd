package httpapi

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-crud-service/logging"
)

// HTTPLogger logs each request on the way in and out at the HTTP level.
// Failed requests are logged at error level with the last handler error.
func HTTPLogger(l *slog.Logger) gin.HandlerFunc {
	logger := logging.Component(l, "HttpLogger")

	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()
		method := c.Request.Method
		url := c.Request.URL.RequestURI()

		logger.Log(ctx, logging.LevelHTTP, fmt.Sprintf("→ %s %s", method, url),
			"ip", c.ClientIP(),
			"userAgent", c.Request.UserAgent(),
		)

		c.Next()

		status := c.Writer.Status()
		duration := elapsed(c, start)
		msg := fmt.Sprintf("← %s %s %d %dms", method, url, status, duration.Milliseconds())

		if status >= 500 {
			attrs := []any{"statusCode", status, "duration", duration.Milliseconds()}
			if last := c.Errors.Last(); last != nil {
				attrs = append(attrs, "error", last.Err)
			}
			logger.ErrorContext(ctx, msg, attrs...)
			return
		}
		logger.Log(ctx, logging.LevelHTTP, msg,
			"statusCode", status,
			"duration", duration.Milliseconds(),
		)
	}
}

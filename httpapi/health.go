package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Component states reported by the health endpoint.
const (
	StatusUp       = "up"
	StatusDown     = "down"
	StatusDisabled = "disabled"
)

// DBPinger is satisfied by *sql.DB and *bun.DB.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// CachePinger is satisfied by every cache backend.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// HealthReport is the health endpoint body.
type HealthReport struct {
	Status   bool   `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

// Health checks the database and the cache. Either may be nil, in which case
// it is reported as disabled.
type Health struct {
	DB      DBPinger
	Cache   CachePinger
	Timeout time.Duration
}

// Check pings every configured dependency.
func (h Health) Check(ctx context.Context) HealthReport {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := HealthReport{Status: true, Database: StatusDisabled, Cache: StatusDisabled}
	if h.DB != nil {
		r.Database = StatusUp
		if err := h.DB.PingContext(ctx); err != nil {
			r.Database = StatusDown
			r.Status = false
		}
	}
	if h.Cache != nil {
		r.Cache = StatusUp
		if err := h.Cache.Ping(ctx); err != nil {
			r.Cache = StatusDown
			r.Status = false
		}
	}
	return r
}

// Handler answers 200 when every dependency is up and 503 otherwise.
func (h Health) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report := h.Check(c.Request.Context())
		status := http.StatusOK
		if !report.Status {
			status = http.StatusServiceUnavailable
		}
		Respond(c, status, report)
	}
}

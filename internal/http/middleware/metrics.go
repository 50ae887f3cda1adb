package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/obe-backend/internal/observability"
)

// unmatchedRoute keeps 404 scans from minting one label per raw path.
const unmatchedRoute = "unmatched"

// Metrics records API counts and latency by route template. Scrapes of
// /metrics are not observed.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "/metrics" {
			c.Next()
			return
		}
		if route == "" {
			route = unmatchedRoute
		}

		m.APIInflightInc()
		defer m.APIInflightDec()
		start := time.Now()
		c.Next()

		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

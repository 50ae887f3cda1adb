package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/obe-backend/internal/pkg/ctxutil"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

// quietRoutes are polled by orchestrators and scrapers; successful hits go
// to debug.
var quietRoutes = map[string]bool{
	"/healthcheck":  true,
	"/metrics":      true,
	"/api/jobs/:id": true,
}

// RequestLogger writes one line per request. Student ids in the path are
// logged under student_id so the logger hashes them.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		ctx := c.Request.Context()

		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if td := ctxutil.GetTraceData(ctx); td != nil {
			fields = append(fields, "trace_id", td.TraceID, "request_id", td.RequestID)
		}
		if actor := ctxutil.Actor(ctx); actor != "" {
			fields = append(fields, "requested_by", actor)
		}
		if sid := c.Param("id"); sid != "" && strings.HasPrefix(route, "/api/students/") {
			fields = append(fields, "student_id", sid)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		case quietRoutes[route]:
			log.Debug("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

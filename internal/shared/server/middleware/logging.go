package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"docqr-backend/internal/shared/telemetry"
)

// quiet paths are logged at debug so probes do not flood the log
var quietPaths = map[string]struct{}{
	"/api/health": {},
	"/metrics":    {},
}

// Logging emits one http.request line per request. Level follows the status:
// 5xx at error, 4xx at warn, the rest at info.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		status := c.Writer.Status()

		level := zerolog.InfoLevel
		switch {
		case status >= http.StatusInternalServerError:
			level = zerolog.ErrorLevel
		case status >= http.StatusBadRequest:
			level = zerolog.WarnLevel
		default:
			if _, ok := quietPaths[c.Request.URL.Path]; ok {
				level = zerolog.DebugLevel
			}
		}

		ev := telemetry.Logger().WithLevel(level).
			Str("request_id", RequestIDFromContext(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("route", c.FullPath()).
			Int("status", status).
			Float64("duration_ms", float64(time.Since(start).Microseconds())/1000.0).
			Int("bytes_out", c.Writer.Size()).
			Str("user_id", UserIDFromContext(c)).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent())
		if documentID := c.GetString("documentId"); documentID != "" {
			ev = ev.Str("document_id", documentID)
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Msg("http.request")
	}
}

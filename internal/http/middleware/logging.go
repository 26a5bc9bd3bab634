// README: Request logging and latency metrics.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"homefix/internal/logging"
	"homefix/internal/metrics"
)

func Logging(log logrus.FieldLogger) gin.HandlerFunc {
	log = logging.OrDiscard(log)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Writer.Status()
		metrics.ObserveHTTP(c.Request.Method, route, status, elapsed)

		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"route":    route,
			"status":   status,
			"duration": elapsed,
			"actor":    CallerUID(c),
		})
		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Info("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}

package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harborhealth/clinicdesk/pkg/metrics"
)

// Observe records request metrics and a structured access log line.
func Observe(mc *metrics.Collector, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		mc.InFlightGauge.Inc()

		c.Next()

		mc.InFlightGauge.Dec()
		elapsed := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())

		// FullPath keeps label cardinality bounded (route template, not raw URL)
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		mc.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		mc.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(elapsed.Seconds())

		if c.Writer.Status() >= 500 {
			log.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", path),
				zap.Int("status", c.Writer.Status()),
				zap.Duration("elapsed", elapsed),
				zap.String("ip", c.ClientIP()),
			)
		} else {
			log.Debug("request",
				zap.String("method", c.Request.Method),
				zap.String("path", path),
				zap.Int("status", c.Writer.Status()),
				zap.Duration("elapsed", elapsed),
			)
		}
	}
}

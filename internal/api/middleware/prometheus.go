package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ledger-api/internal/pkg/telemetry"
)

// PrometheusMiddleware collects HTTP metrics in Prometheus format.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		telemetry.HTTPRequestsInFlight.Inc()
		defer telemetry.HTTPRequestsInFlight.Dec()

		start := time.Now()

		c.Next()

		duration := time.Since(start)

		method := c.Request.Method
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		statusCode := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPDuration.WithLabelValues(method, endpoint, statusCode).Observe(duration.Seconds())
		telemetry.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	}
}

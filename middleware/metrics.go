package middleware

import (
	"github.com/gin-gonic/gin"

	"docqa-platform/internal/telemetry"
)

// MetricsMiddleware counts handled requests by method, route and status.
func MetricsMiddleware(m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		m.RecordRequest(c.Request.Context(), c.Request.Method, c.FullPath(), c.Writer.Status())
	}
}

package middleware

import (
	"time"

	"rpsnet/internal/logger"

	"github.com/gin-gonic/gin"
)

// RequestLog logs every ops request at debug level.
func RequestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http: request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}

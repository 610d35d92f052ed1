// README: Request logging middleware.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"ridehail/internal/logger"
)

// Logging writes one entry per request. Server errors attached with c.Error
// are logged at error level.
func Logging(log logger.ILogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
		}
		if err := c.Errors.Last(); err != nil {
			log.Error("request failed", append(fields, logger.Error(err.Err))...)
			return
		}
		log.Debug("request", fields...)
	}
}

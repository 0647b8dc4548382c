package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"idees/internal/logger"
	"idees/internal/utils"
)

// AccessLog writes one line per request.
func AccessLog(log logger.Logger, trustProxy bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		status := c.Writer.Status()
		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int("status", status),
			logger.Duration("latency", time.Since(start)),
			logger.String("ip", utils.ClientIP(c.Request, trustProxy)),
		}
		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

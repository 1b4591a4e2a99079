package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopsync/feedhub/pkg/response"
)

// Recovery turns a handler panic into a logged 500 instead of a dropped
// connection.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
				)
				response.InternalError(c, "internal server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

package middleware

import (
	"candle-shop/apperrors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error attached with c.Error as the JSON
// error envelope. Server-side failures are logged with their cause; the
// client only sees the generic message.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := apperrors.StatusOf(err)
		if status >= 500 {
			logger.Error("Request failed",
				zap.String("trace_id", GetTraceID(c.Request.Context())),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
		}

		c.JSON(status, gin.H{
			"success": false,
			"message": apperrors.MessageOf(err),
		})
	}
}

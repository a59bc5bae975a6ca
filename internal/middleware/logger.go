package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"buildadvisor/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"

// RequestID propagates X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// ErrorLogger logs every request, the raw causes recorded with c.Error, and
// recovers from panics with a generic 500.
func ErrorLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				requestLogger(log, c, start).Error("panic",
					zap.String("error", fmt.Sprintf("%v", recovered)),
					zap.ByteString("stack", debug.Stack()))
				response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Something went wrong. Please try again later.")
				c.Abort()
				return
			}

			l := requestLogger(log, c, start)
			for _, err := range c.Errors {
				l.Warn("request_error", zap.Error(err.Err))
			}
			switch status := c.Writer.Status(); {
			case status >= http.StatusInternalServerError:
				l.Error("request")
			default:
				l.Info("request")
			}
		}()

		c.Next()
	}
}

func requestLogger(log *zap.Logger, c *gin.Context, start time.Time) *zap.Logger {
	return log.With(
		zap.Int("status", c.Writer.Status()),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("client_ip", c.ClientIP()),
		zap.String("user_id", c.GetString(userIDKey)),
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.Duration("latency", time.Since(start)),
	)
}

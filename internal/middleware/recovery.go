package middleware

import (
	"net/http"
	"runtime/debug"

	"teamflow/backend/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

// RecoveryWithLog turns a panicking handler into a 500 and logs the stack.
func RecoveryWithLog(logger *logging.Logger) gin.HandlerFunc {
	logger = logger.WithComponent("http")
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered",
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// RequestLogger writes one entry per request once the handler chain is done.
func RequestLogger(logger *logging.Logger) gin.HandlerFunc {
	logger = logger.WithComponent("http")
	return func(c *gin.Context) {
		start := timeNow()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", status,
			"latency_ms", timeNow().Sub(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if actor := ActorFrom(c); actor.ID != uuid.Nil {
			args = append(args, "user_id", actor.ID.String())
		}
		if len(c.Errors) > 0 {
			args = append(args, "errors", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request", args...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", args...)
		default:
			logger.Info("request", args...)
		}
	}
}

package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"clinicbook/internal/logging"
)

const ContextRequestID = "request_id"

// RequestID propagates X-Request-ID, generating one when absent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := requestID(c)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestID, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// ErrorLogger logs each request and recovers from panics.
func ErrorLogger(log *zap.Logger) gin.HandlerFunc {
	log = logging.OrNop(log)
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				err := fmt.Errorf("%v", recovered)
				log.Error("request panic",
					append(requestFields(c, start), zap.Error(err), zap.ByteString("stack", debug.Stack()))...)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "INTERNAL_SERVER_ERROR",
						"message": "Internal Server Error",
					},
				})
				return
			}

			fields := requestFields(c, start)
			for i, err := range c.Errors {
				fields = append(fields, zap.NamedError(fmt.Sprintf("error_%d", i), err.Err))
			}
			switch status := c.Writer.Status(); {
			case status >= http.StatusInternalServerError:
				log.Error("request failed", fields...)
			case status >= http.StatusBadRequest || len(c.Errors) > 0:
				log.Info("request rejected", fields...)
			default:
				log.Debug("request", fields...)
			}
		}()

		c.Next()
	}
}

func requestFields(c *gin.Context, start time.Time) []zap.Field {
	return []zap.Field{
		zap.String("request_id", c.GetString(ContextRequestID)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.String("client_ip", c.ClientIP()),
		zap.String("subject", c.GetString(ContextSubject)),
		zap.Duration("latency", time.Since(start)),
	}
}

func requestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = c.GetHeader("X-Request-Id")
	}
	return requestID
}

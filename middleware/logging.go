package middleware

import (
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/myresource/utils"
)

// Ginzap writes one access log line per request.
func Ginzap(logger *zap.Logger, timeFormat string, utc bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		c.Next()

		end := time.Now()
		if utc {
			end = end.UTC()
		}
		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.Duration("latency", end.Sub(start)),
			zap.String("time", end.Format(timeFormat)),
		}
		if len(c.Errors) > 0 {
			for _, e := range c.Errors.Errors() {
				logger.Error(e, fields...)
			}
			return
		}
		logger.Info("HTTP Request", fields...)
	}
}

// RecoveryWithZap recovers panics, logs them and answers with the JSON error envelope.
func RecoveryWithZap(logger *zap.Logger, stack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			// A client that went away is not worth a 500 or a stack trace.
			if ne, ok := err.(*net.OpError); ok {
				if se, ok := ne.Err.(*os.SyscallError); ok {
					msg := strings.ToLower(se.Error())
					if strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer") {
						logger.Warn("client connection lost", zap.Any("error", err), zap.String("path", c.Request.URL.Path))
						c.Abort()
						return
					}
				}
			}
			fields := []zap.Field{
				zap.Any("error", err),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
			}
			if stack {
				fields = append(fields, zap.ByteString("stack", debug.Stack()))
			}
			logger.Error("panic recovered", fields...)
			utils.Abort(c, http.StatusInternalServerError, 50000, "internal server error")
		}()
		c.Next()
	}
}

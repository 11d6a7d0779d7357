package interfaces

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"

	slowRequestThreshold = 500 * time.Millisecond
)

// NewRouter builds a gin engine with request ids, logging and panic recovery.
func NewRouter(logger *zap.Logger, maxMultipartMemory int64) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	if maxMultipartMemory > 0 {
		router.MaxMultipartMemory = maxMultipartMemory
	}
	router.Use(RequestID(), RequestLogger(logger), gin.Recovery())
	return router
}

// RequestID propagates or assigns an X-Request-ID for every request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs every request with its latency. Slow requests are logged at warn.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
			zap.String("request_id", c.GetString(requestIDKey)),
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.Error("request failed", fields...)
		case duration > slowRequestThreshold:
			logger.Warn("slow request", fields...)
		default:
			logger.Debug("request completed", fields...)
		}
	}
}

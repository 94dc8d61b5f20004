package server

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"time"
)

const (
	HeaderRequestID = "X-Request-Id"

	ctxKeyRequestID = "request_id"
	ctxKeyParseKind = "parse_kind"
)

// requestIDMiddleware keeps an incoming X-Request-Id or issues a new one.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(ctxKeyRequestID)
}

func (s *HTTPServer) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		attrs := []any{
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"remote_addr", c.ClientIP(),
			"request_id", requestID(c),
		}
		if kind := c.GetString(ctxKeyParseKind); kind != "" {
			attrs = append(attrs, "payload", kind)
		}
		s.logger.InfoContext(c.Request.Context(), "http request", attrs...)
	}
}

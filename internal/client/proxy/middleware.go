package proxy

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestID propagates or generates X-Request-Id.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// activity counts every request it guards as user activity.
func (s *Server) activity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.deps.Activity != nil {
			s.deps.Activity.Publish()
		}
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.deps.Logger.Debug(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(requestIDKey),
		)
	}
}

package httpapi

import (
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDKey = "request_id"

// recovery turns a handler panic into a 500 with the generic detail.
func (s *HTTPServer) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, rec any) {
		s.requestLogger(c).Error(c.Request.Context(), "panic recovered", "panic", rec)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Detail: common.DefaultInternalDetail})
	})
}

// requestID propagates the caller's X-Request-ID or mints one.
func (s *HTTPServer) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(common.RequestIDHeaderName)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(common.RequestIDHeaderName, id)
		c.Next()
	}
}

// accessLog writes one line per request and counts it.
func (s *HTTPServer) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		s.metrics.RecordHTTPRequest(c.Request.Method, route, status)
		s.requestLogger(c).Info(c.Request.Context(), "HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *HTTPServer) requestLogger(c *gin.Context) logging.Logger {
	return s.logger.With(requestIDKey, c.GetString(requestIDKey))
}

package ingestion

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

// requestIDMiddleware propagates the caller's request id or assigns a new one
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// recoveryMiddleware turns handler panics into a 500 envelope
func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		s.logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString("request_id")),
		)

		abortWithError(c, http.StatusInternalServerError, CodeInternal,
			"An internal server error occurred",
			"The server encountered an unexpected error and has recovered")
	})
}

// metricsMiddleware records request counts and latencies by route template
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// requestSizeMiddleware limits the size of request bodies
func (s *Server) requestSizeMiddleware() gin.HandlerFunc {
	maxRequestSize := s.config.Server.MaxBodyBytes

	return func(c *gin.Context) {
		if c.Request.ContentLength > maxRequestSize {
			abortWithError(c, http.StatusRequestEntityTooLarge, CodeRequestTooLarge,
				"Request body too large",
				fmt.Sprintf("Request body cannot exceed %d bytes", maxRequestSize))
			return
		}

		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestSize)
		}
		c.Next()
	}
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/elibrary/apigateway/internal/util"
)

const (
	// RequestIDHeader is the default header name for the request ID.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key for the request ID.
	RequestIDKey = "requestID"
)

// RequestID returns a middleware that propagates or generates the request
// ID using the default header.
func RequestID() gin.HandlerFunc {
	return RequestIDWithHeader(RequestIDHeader)
}

// RequestIDWithHeader returns a middleware that reads the correlation id
// from header, generating a UUID when it is absent or empty, and stores a
// RequestContext for the rest of the pipeline. The header is set on the
// response before any handler runs so that it survives error paths.
func RequestIDWithHeader(header string) gin.HandlerFunc {
	if header == "" {
		header = RequestIDHeader
	}

	return func(c *gin.Context) {
		requestID := c.GetHeader(header)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}

		rc := &util.RequestContext{
			RequestID: requestID,
			ClientIP:  c.ClientIP(),
			PeerIP:    c.RemoteIP(),
			Scheme:    scheme,
			Host:      c.Request.Host,
			StartTime: time.Now(),
		}
		c.Request = c.Request.WithContext(util.ContextWithRequestContext(c.Request.Context(), rc))
		c.Set(RequestIDKey, requestID)
		c.Header(header, requestID)

		c.Next()
	}
}

// GetRequestID returns the request ID stored on the context.
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

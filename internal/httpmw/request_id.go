// Package httpmw holds the Gin middleware shared by the cmd/ HTTP
// surfaces.
package httpmw

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 64
)

// RequestID ensures every request carries a correlation id: it reuses a
// client-supplied X-Request-ID header when present and well-formed,
// otherwise mints a new UUID, echoes it back in the response header, and
// stores it in the Gin context for handlers and logging.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.New().String()
		}

		c.Header(requestIDHeader, requestID)
		c.Set(RequestIDKey, requestID)

		c.Next()
	}
}

func validRequestID(id string) bool {
	return len(id) >= 1 && len(id) <= maxRequestIDLen
}

// GetRequestID retrieves the request id stashed by RequestID. Returns the
// empty string if none is present.
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

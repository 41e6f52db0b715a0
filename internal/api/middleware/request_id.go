package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is the header carrying the request correlation ID.
const RequestIDHeader = "X-Request-ID"

// RequestIDKey is the gin context key the ID is stored under.
const RequestIDKey = "request_id"

// RequestID attaches a correlation ID to every request. A client-supplied
// X-Request-ID is honored, otherwise a fresh UUID is generated. The ID is
// echoed on the response so callers can cite it in bug reports.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = uuid.New().String()
		}

		c.Set(RequestIDKey, rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}

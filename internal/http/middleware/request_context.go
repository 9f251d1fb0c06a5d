package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stagium/backend/internal/platform/ctxutil"
)

// AttachRequestContext gives every request a trace/request id pair, honoring
// ids forwarded by an upstream proxy.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		td := &ctxutil.TraceData{
			TraceID:   c.GetHeader("X-Trace-Id"),
			RequestID: c.GetHeader("X-Request-Id"),
		}
		if td.TraceID == "" {
			td.TraceID = uuid.New().String()
		}
		if td.RequestID == "" {
			td.RequestID = uuid.New().String()
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Writer.Header().Set("X-Request-Id", td.RequestID)
		c.Next()
	}
}

package middleware

import (
	"ustp_things/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TraceHeader   = "X-Trace-ID"
	maxTraceIDLen = 64
)

// TraceMiddleware 沿用上游的追踪 ID，没有或过长时重新生成
// ID 同时写入 gin 上下文和 request context，服务层通过 logger.Ctx 取用
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" || len(traceID) > maxTraceIDLen {
			traceID = uuid.NewString()
		}

		c.Set("traceID", traceID)
		c.Request = c.Request.WithContext(logger.WithTraceID(c.Request.Context(), traceID))
		c.Header(TraceHeader, traceID)

		c.Next()
	}
}

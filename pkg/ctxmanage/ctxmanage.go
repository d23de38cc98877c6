package ctxmanage

import (
	"context"

	"github.com/gin-gonic/gin"
)

type ctxKey int

const TraceIdKey ctxKey = 1

// WithTraceId stores the request trace id on ctx.
func WithTraceId(ctx context.Context, traceId string) context.Context {
	return context.WithValue(ctx, TraceIdKey, traceId)
}

// GetTraceIdOfRequest returns the trace id set by the logger middleware.
func GetTraceIdOfRequest(c *gin.Context) string {
	return TraceIdFromContext(c.Request.Context())
}

func TraceIdFromContext(ctx context.Context) string {
	traceId, ok := ctx.Value(TraceIdKey).(string)
	if !ok {
		return "Unknown"
	}
	return traceId
}

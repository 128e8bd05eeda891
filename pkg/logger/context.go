package logger

import (
	"context"

	"go.uber.org/zap"
)

type traceKey struct{}

// WithTraceID 把追踪 ID 放进 ctx，供下游日志与出站请求使用
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// Ctx 返回带 trace_id 字段的日志实例，ctx 中没有追踪 ID 时返回全局实例
func Ctx(ctx context.Context) *zap.Logger {
	if id := TraceID(ctx); id != "" {
		return Log.With(zap.String("trace_id", id))
	}
	return Log
}

package logger

import (
	"context"

	"go.uber.org/zap"

	"contracttracker/pkg/trace"
)

var Log *zap.Logger

func NewLogger(serviceName string) *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	if serviceName != "" {
		l = l.With(zap.String("service", serviceName))
	}
	Log = l
	return l
}

// WithTrace 从 context 中提取 trace_id 并添加到 logger
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	traceID := trace.FromContext(ctx)
	if traceID != "" {
		return logger.With(zap.String("trace_id", traceID))
	}
	return logger
}

package logger

import (
	"context"

	"go.uber.org/zap"
)

type loggerKey struct{}

// IntoContext returns a child context carrying the logger. The HTTP
// middleware uses it to attach a request-scoped logger with the request id.
func IntoContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored in the context, or a no-op logger
// when none was attached.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

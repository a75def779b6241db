package logging

import "context"

type contextKey string

const loggerContextKey contextKey = "logging.logger"

// ContextWithLogger attaches a correlation-scoped Logger to ctx, the way
// the teacher's logging package attached requestID/userID/accountID.
func ContextWithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, l)
}

// FromContext returns the Logger attached to ctx, or Default() if none
// was attached.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerContextKey).(*Logger); ok && l != nil {
		return l
	}
	return Default()
}

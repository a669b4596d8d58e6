package types

import "context"

// Context Keys
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	loggerKey    contextKey = "logger"
	serviceKey   contextKey = "calling_service"
)

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithLogger stores a Logger in the context.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retrieves the Logger from the context.
// Returns nil if no logger has been set.
func LoggerFromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return nil
}

// WithCallingService records the name of the authenticated upstream service.
func WithCallingService(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, serviceKey, name)
}

// GetCallingService returns the authenticated upstream service name, if any.
func GetCallingService(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(serviceKey).(string)
	return name, ok && name != ""
}

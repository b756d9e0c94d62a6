package telemetry

import "context"

type requestIDKey struct{}

// WithRequestID attaches a request ID to the context for service-level logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request ID attached by WithRequestID, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Detached returns a background context carrying only the request ID of ctx.
// Bookkeeping that must outlive a cancelled request runs on it.
func Detached(ctx context.Context) context.Context {
	return WithRequestID(context.Background(), RequestID(ctx))
}

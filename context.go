package toolrelay

import "context"

type contextKey int

const (
	ctxKeySessionID contextKey = iota
	ctxKeyRequestID
)

// WithContextSessionID returns a context with the calling session id set.
func WithContextSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeySessionID, id)
}

// ContextSessionID returns the session id from context, or empty string.
// The dispatcher sets it on every handler invocation.
func ContextSessionID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeySessionID).(string); ok {
		return v
	}
	return ""
}

// WithContextRequestID returns a context with the request id set.
func WithContextRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// ContextRequestID returns the request id from context, or empty string.
func ContextRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

package logging

import "context"

type contextKey string

const (
	endpointKey  contextKey = "endpoint"
	requestIDKey contextKey = "request_id"
)

// WithEndpoint adds the cache endpoint key to the context.
func WithEndpoint(ctx context.Context, endpoint string) context.Context {
	return context.WithValue(ctx, endpointKey, endpoint)
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetEndpoint retrieves the endpoint key from the context.
// Returns empty string if not present.
func GetEndpoint(ctx context.Context) string {
	if v, ok := ctx.Value(endpointKey).(string); ok {
		return v
	}
	return ""
}

// GetRequestID retrieves the request ID from the context.
// Returns empty string if not present.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

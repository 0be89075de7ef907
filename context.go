package eduAuth

import "context"

type ctxKey uint8

const (
	ctxKeyClientIP ctxKey = iota + 1
	ctxKeyRequestID
)

// WithClientIP records the caller's address on ctx. Login and refresh
// throttling key on it, and audit events carry it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// WithRequestID records a correlation id that shows up in audit metadata and
// in internal-error log lines.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

func stringFromContext(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}

func clientIPFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxKeyClientIP)
}

func requestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxKeyRequestID)
}

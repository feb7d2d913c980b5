package campusauth

import "context"

type clientIPKey struct{}

// WithClientIP attaches the caller's IP for rate-limiting purposes.
// HTTP adapters should set it from the connection's remote address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

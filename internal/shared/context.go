package shared

import "context"

type sessionKey struct{}

// ContextWithSession attaches an authenticated session to the request context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext returns the session attached by the auth middleware,
// or nil for unauthenticated requests.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionKey{}).(*Session)
	return sess
}

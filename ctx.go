package auth

import (
	"context"
)

var sessionCtxKey = &contextKey{"session"}
var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// WithSession sets the session snapshot in the given context
func WithSession(ctx context.Context, session Session) context.Context {
	ctx = context.WithValue(ctx, sessionCtxKey, session)
	if session.User != nil {
		ctx = context.WithValue(ctx, userCtxKey, session.User)
	}
	return ctx
}

// SessionFromContext finds the session snapshot in the context.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	raw, ok := ctx.Value(sessionCtxKey).(Session)
	return raw, ok
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// Can is a convenience function to check a capability directly from the
// context, using the default policy
func Can(ctx context.Context, permission string) bool {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return false
	}
	return session.HasPermission(permission)
}

package channel

import (
	"context"

	"github.com/google/uuid"
)

type sessionKey struct{}

// WithSession returns a context bound to the session id.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// NewSession binds ctx to a new, unique session. Ids are UUIDv7 so they sort
// by creation time in logs.
func NewSession(ctx context.Context) context.Context {
	return WithSession(ctx, uuid.Must(uuid.NewV7()).String())
}

// SessionFromContext returns the session bound to ctx.
func SessionFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

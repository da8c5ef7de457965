package middleware

import (
	"context"

	"github.com/google/uuid"
)

// Principal is the restaurant owner an access token was issued to.
type Principal struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	// AccessID is the token's jti, used to revoke the session on logout.
	AccessID string
}

type principalKey struct{}

type requestIDKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom reports ok only when a principal with a tenant is present.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.TenantID != uuid.Nil
}

// RequestIDFrom returns the id assigned by RequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

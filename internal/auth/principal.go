package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when no authenticated principal is present
var ErrUnauthorized = errors.New("unauthorized")

// Principal is the authenticated identity attached to a request after the
// session token has been verified. It carries the email and authorities
// directly; nothing downstream has to dig them out of the token again.
type Principal struct {
	Email       string
	Authorities []string
}

// HasAuthority reports whether the principal holds the given authority
func (p *Principal) HasAuthority(authority string) bool {
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

type contextKey string

const principalContextKey contextKey = "principal"

// PrincipalFromContext extracts the authenticated principal from the context
func PrincipalFromContext(ctx context.Context) (*Principal, error) {
	principal, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok || principal == nil {
		return nil, ErrUnauthorized
	}
	return principal, nil
}

// ContextWithPrincipal stores the authenticated principal in the context
func ContextWithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

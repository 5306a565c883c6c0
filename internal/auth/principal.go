package auth

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidToken    = errors.New("invalid_token")
)

// Principal is the authenticated caller resolved from a bearer token.
type Principal struct {
	AccountID snowflake.ID
	Role      string
}

func (p Principal) IsAdmin() bool {
	return p.Role == "admin"
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.AccountID == 0 {
		return Principal{}, false
	}
	return p, true
}

// RequireAccount checks that the caller is authenticated as accountID.
func RequireAccount(ctx context.Context, accountID snowflake.ID) (Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return Principal{}, ErrUnauthenticated
	}
	if p.AccountID != accountID {
		return Principal{}, ErrForbidden
	}
	return p, nil
}

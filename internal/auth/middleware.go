package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/atelier/internal/observability/context"
)

const principalContextKey = "auth.principal"

// Middleware resolves the bearer token into a Principal or aborts with ErrUnauthenticated.
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			_ = c.Error(ErrUnauthenticated)
			c.Abort()
			return
		}

		p, err := v.Verify(raw)
		if err != nil {
			_ = c.Error(ErrUnauthenticated)
			c.Abort()
			return
		}

		ctx := WithPrincipal(c.Request.Context(), p)
		ctx = obscontext.WithActor(ctx, p.AccountID.String(), p.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Set(principalContextKey, p)
		c.Next()
	}
}

// RequireRole aborts with ErrForbidden unless the principal has one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c.Request.Context())
		if !ok {
			_ = c.Error(ErrUnauthenticated)
			c.Abort()
			return
		}
		for _, role := range roles {
			if p.Role == role {
				c.Next()
				return
			}
		}
		_ = c.Error(ErrForbidden)
		c.Abort()
	}
}

func PrincipalFromGin(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalContextKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

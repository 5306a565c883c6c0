package server

import (
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/atelier/internal/auth"
	"github.com/smallbiznis/atelier/internal/ratelimit"
)

// principal returns the authenticated caller placed by the verifier middleware.
func principal(c *gin.Context) (auth.Principal, bool) {
	if p, ok := auth.PrincipalFromGin(c); ok {
		return p, true
	}
	return auth.PrincipalFromContext(c.Request.Context())
}

func callerID(c *gin.Context) (snowflake.ID, bool) {
	p, ok := principal(c)
	if !ok {
		AbortWithError(c, auth.ErrUnauthenticated)
		return 0, false
	}
	return p.AccountID, true
}

// ActionRateLimit spends one token of the caller's action bucket.
func (s *Server) ActionRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		p, ok := principal(c)
		if !ok {
			AbortWithError(c, auth.ErrUnauthenticated)
			return
		}

		res, err := s.limiter.AllowAction(c.Request.Context(), p.AccountID.String())
		if err != nil {
			retryAfter := 1
			if res != nil && res.RetryAfter > 0 {
				retryAfter = int(res.RetryAfter.Seconds() + 0.999)
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, ratelimit.ErrRateLimited)
			return
		}
		c.Next()
	}
}

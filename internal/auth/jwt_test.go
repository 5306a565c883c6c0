package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func TestVerifyRoundTrip(t *testing.T) {
	clk := clock.NewFakeClock(testNow)
	v := NewVerifier("s3cret", "atelier", clk)

	token, err := IssueToken("s3cret", "atelier", Principal{AccountID: 99, Role: "pro"}, testNow, time.Hour)
	require.NoError(t, err)

	p, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(99), p.AccountID)
	assert.Equal(t, "pro", p.Role)
}

func TestVerifyRejects(t *testing.T) {
	clk := clock.NewFakeClock(testNow)
	v := NewVerifier("s3cret", "atelier", clk)

	wrongKey, _ := IssueToken("other", "atelier", Principal{AccountID: 1, Role: "user"}, testNow, time.Hour)
	wrongIssuer, _ := IssueToken("s3cret", "someone", Principal{AccountID: 1, Role: "user"}, testNow, time.Hour)
	expired, _ := IssueToken("s3cret", "atelier", Principal{AccountID: 1, Role: "user"}, testNow.Add(-2*time.Hour), time.Hour)
	noRole, _ := IssueToken("s3cret", "atelier", Principal{AccountID: 1}, testNow, time.Hour)

	for name, token := range map[string]string{
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"no role":      noRole,
		"garbage":      "not-a-jwt",
	} {
		_, err := v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}

	_, err := v.Verify("")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRequireAccount(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{AccountID: 5, Role: "user"})

	_, err := RequireAccount(context.Background(), 5)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = RequireAccount(ctx, 6)
	assert.ErrorIs(t, err, ErrForbidden)

	p, err := RequireAccount(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "user", p.Role)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := NewVerifier("s3cret", "", clock.NewFakeClock(testNow))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		switch {
		case errors.Is(c.Errors.Last().Err, ErrUnauthenticated):
			c.AbortWithStatus(http.StatusUnauthorized)
		case errors.Is(c.Errors.Last().Err, ErrForbidden):
			c.AbortWithStatus(http.StatusForbidden)
		}
	})
	r.Use(v.Middleware())
	r.GET("/me", func(c *gin.Context) {
		p, ok := PrincipalFromGin(c)
		require.True(t, ok)
		c.String(http.StatusOK, p.AccountID.String())
	})
	r.GET("/admin", RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	token, err := IssueToken("s3cret", "", Principal{AccountID: 42, Role: "user"}, testNow, time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

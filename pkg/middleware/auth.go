package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/openenroll/portal/internal/sessions"
)

const (
	ClaimsKey = "claims"
	TokenKey  = "bearer_token"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

func bearer(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return token, token != ""
}

// resolve verifies the bearer token and extracts its claims. A revoked token
// resolves like an invalid one.
func resolve(c *gin.Context, ver Verifier, revoked sessions.Revocations) (map[string]interface{}, string, string) {
	token, ok := bearer(c)
	if !ok {
		if c.GetHeader("Authorization") == "" {
			return nil, "", "missing Authorization header"
		}
		return nil, "", "invalid Authorization header"
	}
	if revoked != nil {
		if gone, err := revoked.IsRevoked(c.Request.Context(), token); err != nil || gone {
			return nil, "", "token revoked"
		}
	}
	idToken, err := ver.Verify(c.Request.Context(), token)
	if err != nil {
		return nil, "", "invalid token"
	}
	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, "", "failed to parse claims"
	}
	return claims, token, ""
}

// AuthMiddleware returns a Gin middleware that requires a valid, unrevoked Bearer token.
func AuthMiddleware(ver Verifier, revoked sessions.Revocations) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, token, problem := resolve(c, ver, revoked)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": problem})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Set(TokenKey, token)
		c.Next()
	}
}

// Authenticate attaches claims when a valid token is present and otherwise
// lets the request through; guards decide what an anonymous caller may see.
func Authenticate(ver Verifier, revoked sessions.Revocations) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ver != nil {
			if claims, token, problem := resolve(c, ver, revoked); problem == "" {
				c.Set(ClaimsKey, claims)
				c.Set(TokenKey, token)
			}
		}
		c.Next()
	}
}

// Claims returns the claims set by AuthMiddleware or Authenticate.
func Claims(c *gin.Context) (map[string]interface{}, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]interface{})
	return m, ok
}

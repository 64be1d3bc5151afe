package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/draggle/rate-my-rez-waterloo/internal/auth"
)

const (
	// ContextKeyClaims holds the session claims in Gin context.
	ContextKeyClaims = "sessionClaims"
)

// SessionMiddleware parses the Bearer token when present and stores the
// session claims in the context. Requests without a valid token simply carry
// no session; route handlers decide what that means for them.
func SessionMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.Next()
			return
		}

		claims, err := auth.ValidateJWT(parts[1], jwtSecret)
		if err != nil {
			c.Next()
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// SessionClaims returns the session claims set by SessionMiddleware, or nil.
func SessionClaims(c *gin.Context) *auth.Claims {
	value, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := value.(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

// RequireWriter aborts with 401 unless the request carries a verified
// (non-anonymous) session. Anonymous visitors can read everything but must
// sign in with an institutional account before authoring content.
func RequireWriter() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := SessionClaims(c)
		if claims == nil || !claims.CanWrite() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "auth_required"})
			return
		}
		c.Next()
	}
}

// RequireSession aborts with 503 unless the request carries any session at
// all, anonymous included. The Q&A endpoints use this: a missing session
// means the client has not finished connecting yet.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if SessionClaims(c) == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Please wait for connection..."})
			return
		}
		c.Next()
	}
}

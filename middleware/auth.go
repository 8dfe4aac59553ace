package middleware

import (
	"net/http"
	"strings"

	"candle-shop/apperrors"
	"candle-shop/auth"

	"github.com/gin-gonic/gin"
)

const claimsKey = "auth.claims"

// RequireAuth accepts "Authorization: Bearer <jwt>" and stores the claims
// on the context.
func RequireAuth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			c.Error(apperrors.Unauthorized("Not authorized, no token"))
			c.Abort()
			return
		}

		claims, err := tokens.Parse(token)
		if err != nil {
			c.Error(apperrors.Wrap(err, http.StatusUnauthorized, "Not authorized, token failed"))
			c.Abort()
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.Error(apperrors.Unauthorized("Not authorized"))
			c.Abort()
			return
		}
		if !claims.IsAdmin() {
			c.Error(apperrors.Forbidden("Not authorized as an admin"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

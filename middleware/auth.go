package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/AriMathi1/Fitness-app-server/common/auth"
	"github.com/gin-gonic/gin"
)

const PrincipalKey = "principal"

// AuthMiddleware requires a valid bearer token and stores the caller's
// principal in the gin context.
func AuthMiddleware(verifier *auth.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenStr) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: missing bearer token"})
			return
		}

		principal, err := verifier.Verify(strings.TrimSpace(tokenStr))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: invalid or expired token"})
			return
		}

		c.Set(PrincipalKey, *principal)
		c.Next()
	}
}

func GetPrincipal(c *gin.Context) (auth.Principal, error) {
	if val, ok := c.Get(PrincipalKey); ok {
		if p, ok := val.(auth.Principal); ok && p.UserID != "" {
			return p, nil
		}
	}
	return auth.Principal{}, errors.New("principal not found in context")
}

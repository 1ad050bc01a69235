package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tabashir/internal/auth"
)

const identityKey = "identity"

// Identity is the authenticated caller, injected once at the middleware
// boundary and read from request scope everywhere else.
type Identity struct {
	UserID   uint
	Email    string
	UserType string
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// AuthMiddleware validates the bearer access token and injects the caller's
// identity into the request context.
func AuthMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c)
			return
		}

		rawToken := parts[1]
		if strings.TrimSpace(rawToken) == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := authService.ValidateAccessToken(rawToken)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(identityKey, Identity{
			UserID:   claims.UserID,
			Email:    claims.Email,
			UserType: claims.UserType,
		})
		c.Next()
	}
}

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(c *gin.Context) (Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	return identity, ok
}

// RequireUserType aborts with 403 unless the caller's account type matches.
func RequireUserType(userType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		if !ok {
			abortUnauthorized(c)
			return
		}
		if identity.UserType != userType {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

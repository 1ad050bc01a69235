package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"tabashir/internal/database"
	"tabashir/internal/rbac"
)

// AdminGate loads the caller's permission list and checks it against the
// static page table. Unknown pages and non-admin accounts are denied.
func AdminGate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		if !ok {
			abortUnauthorized(c)
			return
		}
		if identity.UserType != database.UserTypeAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		var user database.User
		err := db.WithContext(c.Request.Context()).
			Select("id", "permissions").
			First(&user, identity.UserID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				abortUnauthorized(c)
				return
			}
			LoggerFromContext(c).Error("load admin permissions failed", slog.Any("error", err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		perms, err := rbac.DecodePermissions(user.Permissions)
		if err != nil {
			LoggerFromContext(c).Error("decode admin permissions failed", slog.Any("error", err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if !rbac.CanAccessPage(perms, c.Request.URL.Path) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}

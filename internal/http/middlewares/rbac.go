package middlewares

import (
	"net/http"

	"github.com/geocoder89/ratehub/internal/authz"
	"github.com/geocoder89/ratehub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireAction gates a route on the role/action matrix. RequireAuth must
// run first; a missing identity is a 401, a denied action a 403.
func (m *AuthMiddleware) RequireAction(action authz.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)

		if !ok || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing identity context",
				},
			})
			return
		}

		if !authz.Can(user.Role(role), action) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": "You are not allowed to perform this action",
				},
			})
			return
		}
		c.Next()
	}
}

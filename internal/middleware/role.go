package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"clinicbook/internal/pkg/response"
)

const RoleAdmin = "admin"

// RequireRole admits requests whose token role is one of roles. It must run
// after JWTAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		if role == "" {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Role not found in token")
			c.Abort()
			return
		}
		if !slices.Contains(roles, role) {
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Staff access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return RequireRole(RoleAdmin)
}

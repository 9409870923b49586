package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"clinicbook/internal/pkg/jwt"
	"clinicbook/internal/pkg/response"
)

// Context keys set by JWTAuth.
const (
	ContextSubject = "subject"
	ContextRole    = "role"
)

// JWTAuth requires a valid "Authorization: Bearer <token>" header.
func JWTAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Authorization header is required")
			c.Abort()
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			response.Error(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be Bearer <token>")
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextSubject, claims.Subject)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

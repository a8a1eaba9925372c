// Package middleware provides Gin HTTP middleware for authentication, tenant
// scoping, rate limiting, security headers, and metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → OrgContext → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB work.
// Auth populates the user identity; OrgContext resolves the tenant from the
// X-Organization-Id header and the caller's membership.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/salespipe/salespipe/internal/auth"
	"github.com/salespipe/salespipe/internal/db/repositories"
	"github.com/salespipe/salespipe/internal/telemetry"
)

const (
	// UserKey is the gin.Context key under which the authenticated *models.User is stored.
	UserKey = "user"

	// UserIDKey is the gin.Context key under which the authenticated user's ID is stored.
	UserIDKey = "user_id"
)

// AuthMiddleware validates the Bearer access token and loads the authenticated user.
//
// Only access tokens are accepted here; refresh tokens are rejected so a leaked
// refresh token cannot be used to call the API directly.
func AuthMiddleware(tokens *auth.TokenManager, userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "authorization token is empty",
			})
			return
		}

		claims, err := tokens.Validate(token, auth.TokenAccess)
		if err != nil {
			telemetry.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "invalid or expired token",
			})
			return
		}

		user, err := userRepo.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"detail": "failed to load user",
			})
			return
		}
		if user == nil {
			// Token is cryptographically valid but the account no longer exists.
			telemetry.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "user not found",
			})
			return
		}

		c.Set(UserKey, user)
		c.Set(UserIDKey, user.ID)

		c.Next()
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"quizmaster/services"
)

const actorKey = "actor"

// Auth validates the bearer token and resolves the Actor once per
// request into the gin context.
func Auth(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token required"})
			return
		}

		actor, err := authService.VerifyAccessToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireUser aborts unless the actor carries the user role.
func RequireUser() gin.HandlerFunc {
	return requireRole(services.RoleUser)
}

// RequireAdmin aborts unless the actor carries the admin role.
func RequireAdmin() gin.HandlerFunc {
	return requireRole(services.RoleAdmin)
}

func requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok || actor.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": role + " access required"})
			return
		}
		c.Next()
	}
}

// GetActor returns the authenticated actor resolved by Auth.
func GetActor(c *gin.Context) (*services.Actor, bool) {
	value, exists := c.Get(actorKey)
	if !exists {
		return nil, false
	}
	actor, ok := value.(*services.Actor)
	return actor, ok
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// Websocket clients cannot set headers; allow the token as a query
	// parameter there.
	return c.Query("token")
}

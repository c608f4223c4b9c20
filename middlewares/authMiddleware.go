package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/distribution_backend/models"
	"github.com/mmdatafocus/distribution_backend/utils"
)

// AuthMiddleware turns a bearer token into actor values on the request context.
// Requests without a token pass through unauthenticated.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claim, err := utils.JwtValidate(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if _, err := models.ParseActorRole(claim.Role); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown role"})
			return
		}

		ctx := utils.SetActorIdInContext(c.Request.Context(), claim.ID)
		ctx = utils.SetActorNameInContext(ctx, claim.Name)
		ctx = utils.SetActorRoleInContext(ctx, claim.Role)
		ctx = utils.SetUnitIdInContext(ctx, claim.UnitId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireActor rejects requests that carry no actor.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := models.ActorFromContext(c.Request.Context()); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/ios-sistema/presenca-api/internal/models"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
	"github.com/ios-sistema/presenca-api/pkg/response"
)

// RequireRoles blocks callers whose role is not in the allowed set.
// Finer-grained scope checks (own unit, own classes) stay in the
// services; this gate only cuts off whole role groups.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		value, exists := c.Get(ContextPrincipalKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthenticated)
			c.Abort()
			return
		}
		principal, ok := value.(models.Principal)
		if !ok {
			response.Error(c, appErrors.ErrUnauthenticated)
			c.Abort()
			return
		}
		if _, ok := allowed[principal.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Staff shorthand for every non-admin role plus admin.
func Staff() gin.HandlerFunc {
	return RequireRoles(models.RoleAdmin, models.RoleInstructor, models.RolePedagogue, models.RoleMonitor)
}

// AdminOnly shorthand for admin-restricted routes.
func AdminOnly() gin.HandlerFunc {
	return RequireRoles(models.RoleAdmin)
}

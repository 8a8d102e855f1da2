package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ios-sistema/presenca-api/internal/middleware"
	"github.com/ios-sistema/presenca-api/internal/models"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

// principalFromContext returns the resolved caller set by the JWT
// middleware. A missing principal means the route was wired without
// the middleware, which is a server bug, not a client error.
func principalFromContext(c *gin.Context) (models.Principal, error) {
	value, exists := c.Get(middleware.ContextPrincipalKey)
	if !exists {
		return models.Principal{}, appErrors.ErrUnauthenticated
	}
	principal, ok := value.(models.Principal)
	if !ok {
		return models.Principal{}, appErrors.ErrUnauthenticated
	}
	return principal, nil
}

func claimsFromContext(c *gin.Context) (*models.JWTClaims, error) {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil, appErrors.ErrUnauthenticated
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil, appErrors.ErrUnauthenticated
	}
	return claims, nil
}

package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bus-dispatch-api/internal/models"
	appErrors "github.com/noah-isme/bus-dispatch-api/pkg/errors"
	"github.com/noah-isme/bus-dispatch-api/pkg/response"
)

// RequireRoles lets the request through only when the caller holds one of roles.
// It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Abort(c, appErrors.ErrForbidden.WithDetails(map[string]interface{}{"role": claims.Role}))
			return
		}
		c.Next()
	}
}

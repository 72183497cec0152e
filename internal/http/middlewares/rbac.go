package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireRole lets the request through when the caller holds any of roles.
// It must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			abortUnauthorized(c, "Missing identity context")
			return
		}

		for _, r := range roles {
			if actor.HasRole(r) {
				c.Next()
				return
			}
		}

		abortWithError(c, http.StatusForbidden, "forbidden", "Requires role: "+strings.Join(roles, " or "))
	}
}

package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/coursehub/internal/actorctx"
	"github.com/geocoder89/coursehub/internal/auth"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// RequireAuth accepts "Authorization: Bearer <access token>" and puts the
// caller on both the gin context and the request context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if raw == "" {
			abortUnauthorized(c, "Missing or invalid access token")
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired access token")
			return
		}

		actor := actorctx.Actor{
			UserID:    claims.UserID,
			Email:     claims.Email,
			Roles:     claims.Roles,
			CompanyID: claims.CompanyID,
		}
		c.Set(CtxActor, actor)
		c.Request = c.Request.WithContext(actorctx.WithActor(c.Request.Context(), actor))

		c.Next()
	}
}

// ActorFromContext returns the authenticated caller, if any.
func ActorFromContext(c *gin.Context) (actorctx.Actor, bool) {
	v, ok := c.Get(CtxActor)
	if !ok {
		return actorctx.Actor{}, false
	}
	a, ok := v.(actorctx.Actor)
	return a, ok && a.Authenticated()
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	a, ok := ActorFromContext(c)
	return a.UserID, ok
}

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/services"
	"github.com/opsdesk/opsdesk/pkg/errors"
	"github.com/opsdesk/opsdesk/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
	CtxActorKey  = "actor"
)

// Auth enforces JWT authentication and resolves the acting user. The loaded
// actor is placed in the request context for handlers and history records.
func Auth(jwt *iauth.JWTService, users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil || !user.IsActive {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxActorKey, iauth.ActorFromUser(user))

		c.Next()
	}
}

// RequireStaff rejects authenticated non-staff accounts. Must run after Auth.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok || !actor.IsStaff {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ActorFrom extracts the authenticated actor set by Auth.
func ActorFrom(c *gin.Context) (iauth.Actor, bool) {
	value, exists := c.Get(CtxActorKey)
	if !exists {
		return iauth.Actor{}, false
	}
	actor, ok := value.(iauth.Actor)
	return actor, ok && actor.IsAuthenticated
}

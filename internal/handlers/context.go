package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	iauth "github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/middleware"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentActor returns the authenticated actor, or the system actor when
// the request carries no identity.
func currentActor(c *gin.Context) iauth.Actor {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return iauth.System()
	}
	return actor
}

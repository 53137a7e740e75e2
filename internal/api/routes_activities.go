package api

import (
	"github.com/gin-gonic/gin"

	"github.com/opsdesk/opsdesk/internal/handlers"
)

func registerActivityRoutes(api *gin.RouterGroup, handler *handlers.ActivityHandler) {
	group := api.Group("/activities")
	{
		group.GET("", handler.List)
		group.GET("/actions", handler.Actions)
	}

	api.GET("/entities/:kind/:id/history", handler.EntityHistory)
}

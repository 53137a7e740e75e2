package api

import (
	"github.com/gin-gonic/gin"

	"github.com/opsdesk/opsdesk/internal/handlers"
)

func registerUserRoutes(api *gin.RouterGroup, handler *handlers.UserHandler) {
	group := api.Group("/users")
	{
		group.GET("", handler.ListStaff)
		group.POST("", handler.Create)
		group.POST("/:id/active", handler.SetActive)
	}
}

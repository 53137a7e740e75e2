package api

import (
	"github.com/gin-gonic/gin"

	"github.com/opsdesk/opsdesk/internal/handlers"
)

func registerStatusRoutes(api *gin.RouterGroup, handler *handlers.StatusHandler) {
	sets := api.Group("/status-sets")
	{
		sets.GET("", handler.ListSets)
		sets.POST("", handler.CreateSet)
		sets.POST("/:id/statuses", handler.EnsureStatus)
		sets.POST("/:id/default", handler.SetDefault)
	}

	modules := api.Group("/modules/:module")
	{
		modules.GET("/statuses", handler.ListForModule)
		modules.GET("/status-usage", handler.GetUsage)
		modules.PUT("/status-usage", handler.SetUsage)
	}
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/opsdesk/opsdesk/internal/handlers"
)

func registerTypeRoutes(api *gin.RouterGroup, handler *handlers.TypeHandler) {
	signalTypes := api.Group("/signal-types")
	{
		signalTypes.GET("", handler.ListSignalTypes)
		signalTypes.POST("", handler.CreateSignalType)
		signalTypes.PATCH("/:id", handler.UpdateSignalType)
	}

	taskTypes := api.Group("/task-types")
	{
		taskTypes.GET("", handler.ListTaskTypes)
		taskTypes.POST("", handler.CreateTaskType)
		taskTypes.PATCH("/:id", handler.UpdateTaskType)
	}
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/opsdesk/opsdesk/internal/handlers"
)

func registerSignalRoutes(api *gin.RouterGroup, handler *handlers.SignalHandler) {
	group := api.Group("/signals")
	{
		group.GET("", handler.List)
		group.POST("", handler.Create)
		group.GET("/:id", handler.Get)
		group.PATCH("/:id", handler.Update)
		group.POST("/:id/status", handler.SetStatus)
		group.POST("/:id/type", handler.SetType)
		group.POST("/:id/active-from", handler.SetActiveFrom)
		group.POST("/:id/assignee", handler.SetAssignee)
		group.POST("/:id/archive", handler.ToggleArchive)
		group.GET("/:id/notes", handler.ListNotes)
		group.POST("/:id/notes", handler.AddNote)
		group.GET("/:id/history", handler.History)
	}
}

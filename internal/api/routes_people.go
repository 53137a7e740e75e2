package api

import (
	"github.com/gin-gonic/gin"

	"github.com/opsdesk/opsdesk/internal/handlers"
)

func registerPersonRoutes(api *gin.RouterGroup, handler *handlers.PersonHandler) {
	group := api.Group("/people")
	{
		group.GET("", handler.List)
		group.POST("", handler.Create)
		group.GET("/:id", handler.Get)
		group.PATCH("/:id", handler.Update)
		group.GET("/:id/notes", handler.ListNotes)
		group.POST("/:id/notes", handler.AddNote)
		group.GET("/:id/history", handler.History)
	}
}

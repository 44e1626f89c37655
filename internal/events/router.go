package events

import (
	"github.com/gin-gonic/gin"
)

// SetupEventRoutes configures all event-related routes
func SetupEventRoutes(rg *gin.RouterGroup, controller *Controller) {
	events := rg.Group("/events")
	{
		events.POST("", controller.CreateEvent)
		events.GET("", controller.ListEvents)
		events.GET("/:id", controller.GetEvent)
		events.PATCH("/:id", controller.UpdateEvent)
		events.POST("/:id/start-sale", controller.StartSale)
	}
}

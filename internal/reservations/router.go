package reservations

import (
	"github.com/gin-gonic/gin"
)

// SetupReservationRoutes configures all Path A reservation routes
func SetupReservationRoutes(rg *gin.RouterGroup, controller *Controller) {
	reservations := rg.Group("/reservations")
	{
		reservations.POST("", controller.CreateReservation)
		reservations.GET("", controller.ListReservations)
		reservations.GET("/:id", controller.GetReservation)
		reservations.POST("/:id/extend", controller.ExtendReservation)
		reservations.DELETE("/:id", controller.CancelReservation)
	}
}

package bookings

import (
	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes configures all booking-related routes
func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller) {
	bookings := rg.Group("/bookings")
	{
		bookings.POST("", controller.CreateBooking)
		bookings.GET("", controller.GetUserBookings)
		bookings.GET("/:id", controller.GetBooking)
		bookings.GET("/reference/:ref", controller.GetBookingByReference)
		bookings.POST("/:id/confirm-payment", controller.ConfirmPayment)
		bookings.POST("/:id/cancel", controller.CancelBooking)
	}
}

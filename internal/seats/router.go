package seats

import (
	"github.com/gin-gonic/gin"
)

// SetupSeatRoutes configures all seat-related routes
func SetupSeatRoutes(rg *gin.RouterGroup, controller *Controller) {
	seats := rg.Group("/events/:id/seats")
	{
		seats.POST("", controller.CreateSeats)
		seats.GET("", controller.GetSeats)
		seats.GET("/available", controller.GetAvailableSeats)
	}
}

package queue

import (
	"github.com/gin-gonic/gin"
)

// SetupQueueRoutes configures all Path B routes under /v2
func SetupQueueRoutes(v2 *gin.RouterGroup, controller *Controller, ws *WSController) {
	reservations := v2.Group("/reservations")
	{
		reservations.POST("", controller.EnqueueReservation)
		reservations.GET("/:request_id", controller.GetRequestStatus)
		reservations.DELETE("/:request_id", controller.CancelRequest)
	}

	queueGroup := v2.Group("/queue")
	{
		queueGroup.GET("/stats/:event_id", controller.GetStats)
		queueGroup.GET("/health", controller.GetHealth)
	}

	wsGroup := v2.Group("/ws")
	{
		wsGroup.GET("/reservation/:request_id", ws.StreamRequest)
		wsGroup.GET("/user/:user_id", ws.StreamUser)
	}
}

// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"github.com/YeonwooSung/ticketing-system/internal/bookings"
	"github.com/YeonwooSung/ticketing-system/internal/events"
	"github.com/YeonwooSung/ticketing-system/internal/notifications"
	"github.com/YeonwooSung/ticketing-system/internal/queue"
	"github.com/YeonwooSung/ticketing-system/internal/reservations"
	"github.com/YeonwooSung/ticketing-system/internal/seats"
	"github.com/YeonwooSung/ticketing-system/internal/shared/config"
	"github.com/YeonwooSung/ticketing-system/internal/shared/database"
	"github.com/YeonwooSung/ticketing-system/internal/shared/middleware"
	"github.com/YeonwooSung/ticketing-system/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config *config.Config
	db     *database.DB
	log    *logger.Logger

	engine      reservations.Engine
	bookingSvc  bookings.Service
	queueSvc    queue.Service
	statusStore queue.StatusStore
	hub         *notifications.Hub
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, log *logger.Logger,
	engine reservations.Engine, bookingSvc bookings.Service,
	queueSvc queue.Service, statusStore queue.StatusStore,
	hub *notifications.Hub) *Router {
	return &Router{
		config:      cfg,
		db:          db,
		log:         log,
		engine:      engine,
		bookingSvc:  bookingSvc,
		queueSvc:    queueSvc,
		statusStore: statusStore,
		hub:         hub,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	identity := middleware.Identity(r.config)

	// Path A: synchronous, lock-mediated
	api := engine.Group("", identity)
	{
		events.SetupEventRoutes(api, events.NewController(events.NewService(events.NewRepository(r.db.PostgreSQL))))
		seats.SetupSeatRoutes(api, seats.NewController(seats.NewRepository(r.db.PostgreSQL)))
		reservations.SetupReservationRoutes(api, reservations.NewController(r.engine))
		bookings.SetupBookingRoutes(api, bookings.NewController(r.bookingSvc))
	}

	// Path B: asynchronous, queue-mediated
	v2 := engine.Group("/v2", identity)
	{
		queueController := queue.NewController(r.queueSvc, r.db)
		wsController := queue.NewWSController(r.hub, r.statusStore, r.config.Queue.WSIdleTimeout, r.log)
		queue.SetupQueueRoutes(v2, queueController, wsController)
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "ticketing-system",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "ticketing-system",
			"listeners": r.hub.ListenerCount(),
		})
	})
}

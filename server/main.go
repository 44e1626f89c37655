package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YeonwooSung/ticketing-system/api/routes"
	"github.com/YeonwooSung/ticketing-system/internal/bookings"
	"github.com/YeonwooSung/ticketing-system/internal/notifications"
	"github.com/YeonwooSung/ticketing-system/internal/queue"
	"github.com/YeonwooSung/ticketing-system/internal/reservations"
	"github.com/YeonwooSung/ticketing-system/internal/shared/config"
	"github.com/YeonwooSung/ticketing-system/internal/shared/database"
	"github.com/YeonwooSung/ticketing-system/internal/shared/middleware"
	"github.com/YeonwooSung/ticketing-system/pkg/lock"
	"github.com/YeonwooSung/ticketing-system/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// Exit codes: 0 normal shutdown, 1 fatal startup error, 2 config error.
const (
	exitFatal  = 1
	exitConfig = 2
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	appLogger := logger.GetDefault()

	if err := godotenv.Load(); err != nil {
		appLogger.Info("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		appLogger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(exitConfig)
	}

	gin.SetMode(cfg.GinMode)

	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to initialize storage", slog.Any("error", err))
		os.Exit(exitFatal)
	}
	defer db.Close()

	// Distributed lock over Redis; the compare-and-delete script is
	// preloaded so releases stay one round trip.
	locker := lock.NewLocker(db.Redis)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := locker.PreloadScripts(ctx); err != nil {
			appLogger.Warn("failed to preload lock scripts, loading on first use", slog.Any("error", err))
		}
		cancel()
	}

	// Notification event pipeline (Kafka); disabled unless configured.
	var producer notifications.EventProducer = notifications.NoopEventProducer{}
	if cfg.Kafka.Enabled {
		kafkaProducer, err := notifications.NewKafkaEventProducer(cfg.Kafka)
		if err != nil {
			appLogger.Error("failed to create Kafka producer", slog.Any("error", err))
			os.Exit(exitFatal)
		}
		defer kafkaProducer.Close()
		producer = kafkaProducer
	}

	// Reservation engine and expiration sweeper
	reservationRepo := reservations.NewRepository(db.PostgreSQL)
	engine := reservations.NewEngine(reservationRepo, locker, cfg.Reservation, appLogger)
	sweeper := reservations.NewSweeper(reservationRepo, locker, producer, cfg.Reservation, appLogger)

	// Booking finalizer
	bookingSvc := bookings.NewService(bookings.NewRepository(db.PostgreSQL), locker, producer, cfg.Reservation, appLogger)

	// Path B queue: streams, status store, workers, notifications
	statusStore := queue.NewStatusStore(db.Redis, cfg.Queue.StatusTTL)
	broker := queue.NewStreams(db.Redis, cfg.Queue.MaxDeliveries, cfg.Queue.ReclaimIdle, cfg.Queue.ReadBlock, appLogger)
	throughput := queue.NewThroughput()
	queueSvc := queue.NewService(broker, statusStore, throughput, cfg.Reservation)
	notifier := queue.NewRedisNotifier(db.Redis)

	hub := notifications.NewHub(appLogger)
	bridge := notifications.NewBridge(db.Redis, hub, appLogger)

	// Background lifecycle
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go bridge.Start(bgCtx)
	go sweeper.Start(bgCtx)

	hostname, _ := os.Hostname()
	for i := 0; i < cfg.Queue.WorkerCount; i++ {
		worker := queue.NewWorker(
			fmt.Sprintf("%s-worker-%d", hostname, i),
			broker, statusStore, engine, notifier, throughput, appLogger,
		)
		go worker.Start(bgCtx)
		if i == 0 {
			go worker.StartReclaimer(bgCtx, cfg.Queue.ReclaimInterval)
		}
	}

	if cfg.Kafka.Enabled {
		consumer, err := notifications.NewEventConsumer(cfg.Kafka, nil, appLogger)
		if err != nil {
			appLogger.Error("failed to create Kafka consumer", slog.Any("error", err))
			os.Exit(exitFatal)
		}
		defer consumer.Close()
		go consumer.Start(bgCtx)
	}

	// HTTP server
	router := setupRouter(cfg, db, appLogger, engine, bookingSvc, queueSvc, statusStore, hub)
	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("🚀 Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("version", Version),
			slog.Int("queue_workers", cfg.Queue.WorkerCount),
			slog.Bool("kafka_pipeline", cfg.Kafka.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func setupRouter(cfg *config.Config, db *database.DB, appLogger *logger.Logger,
	engine reservations.Engine, bookingSvc bookings.Service,
	queueSvc queue.Service, statusStore queue.StatusStore,
	hub *notifications.Hub) *gin.Engine {

	ginEngine := gin.New()
	ginEngine.Use(middleware.RequestLogger(appLogger), gin.Recovery())

	ginEngine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-User-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	appRouter := routes.NewRouter(cfg, db, appLogger, engine, bookingSvc, queueSvc, statusStore, hub)
	appRouter.SetupRoutes(ginEngine)

	return ginEngine
}

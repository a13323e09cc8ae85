package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tripjournal/service-trips/internal/application"
	"github.com/tripjournal/service-trips/internal/common/auth"
	"github.com/tripjournal/service-trips/internal/common/database"
	"github.com/tripjournal/service-trips/internal/common/health"
	"github.com/tripjournal/service-trips/internal/common/kafka"
	"github.com/tripjournal/service-trips/internal/common/logger"
	"github.com/tripjournal/service-trips/internal/common/middleware"
	"github.com/tripjournal/service-trips/internal/config"
	"github.com/tripjournal/service-trips/internal/events"
	"github.com/tripjournal/service-trips/internal/handler"
	"github.com/tripjournal/service-trips/internal/repository"
	"github.com/tripjournal/service-trips/internal/ws"
)

const serviceName = "service-trips"

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	// Initialize logger.
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database.
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations. SQL migrations target postgres only.
	if cfg.AppEnv == "development" || cfg.DBConfig.Driver == "sqlite" {
		if err := repository.AutoMigrate(db); err != nil {
			log.Fatal("failed to auto-migrate database", zap.Error(err))
		}
		log.Info("database migration completed (auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.URL(), "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, cfg.JWTConfig.AccessExpiry, cfg.JWTConfig.RefreshExpiry)

	// Initialize Kafka producer.
	producer := kafka.NewProducer(cfg.KafkaConfig.Brokers, cfg.KafkaConfig.PublishTries, log)
	defer func() { _ = producer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	// Initialize WebSocket hub.
	wsHub := ws.NewHub(log)
	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})

	// Initialize repositories and services. Both trip services share one lock table so a
	// sample never races an end or a policy edit on the same trip.
	tripRepo := repository.NewGORMTripRepository(db, log)
	shareRepo := repository.NewGormSharedTripRepository(db)
	locks := application.NewTripLocks()

	tripTopic := cfg.KafkaConfig.TripTopic
	tripService := application.NewTripService(tripRepo, locks, wsHub, producer, tripTopic, log)
	autoSaveService := application.NewAutoSaveService(tripRepo, locks, wsHub, producer, tripTopic, log)
	shareService := application.NewShareService(shareRepo, tripRepo, cfg.ShareConfig.LinkTTL, log)

	// Initialize Kafka consumer for device samples.
	groupPrefix := cfg.KafkaConfig.GroupPrefix
	if groupPrefix == "" {
		groupPrefix = "trips"
	}
	sampleConsumer := events.NewLocationSampleConsumer(
		cfg.KafkaConfig.Brokers,
		groupPrefix+"-samples",
		cfg.KafkaConfig.SamplesTopic,
		autoSaveService,
		log,
	)
	defer func() { _ = sampleConsumer.Close() }()

	g.Go(func() error {
		if err := sampleConsumer.Start(gctx); err != nil && gctx.Err() == nil {
			log.Error("location sample consumer error", zap.Error(err))
			return err
		}
		return nil
	})

	// Purge expired share links on a schedule.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ShareConfig.PurgeCron, func() {
		if _, err := shareService.PurgeExpired(gctx); err != nil {
			log.Error("failed to purge expired share links", zap.Error(err))
		}
	}); err != nil {
		log.Fatal("invalid share purge schedule", zap.String("schedule", cfg.ShareConfig.PurgeCron), zap.Error(err))
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	// Initialize Gin router.
	router := gin.New()
	router.Use(
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(log),
		middleware.RecoveryMiddleware(log),
		middleware.CORSMiddleware(),
		middleware.SecurityHeadersMiddleware(),
	)

	// Register health check routes.
	healthHandler := health.NewHandler(db, serviceName)
	healthHandler.RegisterRoutes(router)

	// Register REST API routes.
	limiter := middleware.NewUserRateLimiter(cfg.SampleConfig.RatePerSecond, cfg.SampleConfig.Burst)
	apiV1 := router.Group("/api/v1")
	handler.NewTripHandler(tripService, autoSaveService, limiter).RegisterRoutes(apiV1, jwtManager)
	handler.NewWaypointHandler(tripService).RegisterRoutes(apiV1, jwtManager)
	handler.NewShareHandler(shareService).RegisterRoutes(apiV1, jwtManager)

	// Register WebSocket route.
	handler.NewLiveHandler(tripService, wsHub, jwtManager, log).RegisterWSRoute(router)

	// Start HTTP server.
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		log.Info("starting "+serviceName, zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown once a signal arrives or any component fails.
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down " + serviceName + "...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("service stopped with error", zap.Error(err))
	}
	log.Info(serviceName + " stopped")
}

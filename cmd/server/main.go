package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/looptrail/service-planner/internal/application"
	"github.com/looptrail/service-planner/internal/config"
	routeDomain "github.com/looptrail/service-planner/internal/domain/route"
	"github.com/looptrail/service-planner/internal/events"
	"github.com/looptrail/service-planner/internal/handler"
	"github.com/looptrail/service-planner/internal/logger"
	"github.com/looptrail/service-planner/internal/middleware"
	"github.com/looptrail/service-planner/internal/repository"
	"github.com/looptrail/service-planner/internal/routing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-planner")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-planner",
		zap.String("port", cfg.Port),
		zap.String("osrm", cfg.OSRM.BaseURL),
	)

	// Connect to database
	db, err := repository.Connect(cfg.DB.DSN(), log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(&repository.RouteModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	}

	// Initialize Kafka producer when brokers are configured
	var producer *events.Producer
	if cfg.Kafka.Enabled() {
		producer = events.NewProducer(cfg.Kafka.Brokers, log)
		defer func() { _ = producer.Close() }()
		log.Info("event publishing enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	// Initialize routing client and optimizer
	osrm := routing.NewOSRMClient(cfg.OSRM.BaseURL, cfg.OSRM.Profile, cfg.OSRM.Timeout, log)
	searchCfg := routeDomain.SearchConfig{
		Trials:      cfg.Search.Trials,
		TuneSteps:   cfg.Search.TuneSteps,
		ToleranceKm: cfg.Search.ToleranceKm,
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	optimizer := routeDomain.NewOptimizer(osrm, searchCfg, rng, log)

	// Initialize repositories and application service
	routeRepo := repository.NewGormRouteRepository(db)
	plannerService := application.NewPlannerService(routeRepo, optimizer, producer, log, cfg.Search.PaceMinPerKm)

	// Initialize HTTP handlers
	routeHandler := handler.NewRouteHandler(plannerService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := handler.NewHealthHandler(db, "service-planner")
	healthHandler.RegisterRoutes(router)

	// Register routes
	routeHandler.RegisterRoutes(&router.RouterGroup)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-planner...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-planner stopped")
}

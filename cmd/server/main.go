package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stwalsh4118/realty/internal/analytics"
	"github.com/stwalsh4118/realty/internal/config"
	"github.com/stwalsh4118/realty/internal/database"
	"github.com/stwalsh4118/realty/internal/handlers"
	"github.com/stwalsh4118/realty/internal/logger"
	"github.com/stwalsh4118/realty/internal/middleware"
	"github.com/stwalsh4118/realty/internal/ranking"
	"github.com/stwalsh4118/realty/internal/repository"
	"github.com/stwalsh4118/realty/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	log.Info("Starting Realty API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	if cfg.Server.MigrateOnStart {
		if err := migrateUp(cfg.Database, log); err != nil {
			log.Fatal("Failed to apply migrations", err, nil)
		}
	}

	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	log.Info("Database connection established", map[string]interface{}{
		"pool_min":   cfg.Database.PoolMin,
		"pool_max":   cfg.Database.PoolMax,
		"idle_conns": db.Stats().IdleConns(),
	})

	dataset, err := analytics.Load(cfg.Analytics, log.WithComponent("analytics"))
	if err != nil {
		log.Fatal("Failed to load analytics datasets", err, nil)
	}

	var ranker ranking.Ranker = ranking.Disabled{}
	rankingEnabled := cfg.LLM.APIKey != ""
	if rankingEnabled {
		ranker = ranking.NewClient(cfg.LLM, cfg.Ranking.CacheTTL, log.WithComponent("ranking"))
		log.Info("Model ranking enabled", map[string]interface{}{
			"model":    cfg.LLM.Model,
			"base_url": cfg.LLM.BaseURL,
		})
	} else {
		log.Warn("LLM_API_KEY not set, recommendations are returned in query order", nil)
	}

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	healthHandler := handlers.NewHealthHandler(db, cfg.Server.Env, rankingEnabled, dataset.Available())
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Initialize repository and service layers
	buildingRepo := repository.NewBuildingRepository(db)
	amenityRepo := repository.NewAmenityRepository(db)
	recommendationService := services.NewRecommendationService(buildingRepo, ranker, cfg.Ranking.CandidateLimit, log.WithComponent("recommendation"))
	buildingService := services.NewBuildingService(buildingRepo, amenityRepo, log.WithComponent("building"))

	// Initialize handlers
	recommendationHandler := handlers.NewRecommendationHandler(recommendationService)
	buildingHandler := handlers.NewBuildingHandler(buildingService)
	analyticsHandler := handlers.NewAnalyticsHandler(dataset)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/info", healthHandler.Info)

		recommendations := v1.Group("/recommendations")
		{
			recommendations.GET("/options", recommendationHandler.Options)
			recommendations.POST("/preview", recommendationHandler.Preview)
			recommendations.POST("", recommendationHandler.Recommend)
		}

		v1.GET("/buildings/:id", buildingHandler.Get)
		v1.GET("/districts", buildingHandler.Districts)
		v1.GET("/amenities", buildingHandler.Amenities)

		stats := v1.Group("/analytics")
		{
			stats.GET("/buildings", analyticsHandler.Buildings)
			stats.GET("/price-trend", analyticsHandler.PriceTrend)
			stats.GET("/districts/price", analyticsHandler.DistrictsByPrice)
			stats.GET("/districts/volume", analyticsHandler.DistrictsByVolume)
			stats.GET("/districts/volume-map", analyticsHandler.VolumeMap)
			stats.GET("/floors", analyticsHandler.Floors)
			stats.GET("/correlations", analyticsHandler.Correlations)
			stats.GET("/export.xlsx", analyticsHandler.Export)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}

func migrateUp(cfg config.DatabaseConfig, log *logger.Logger) error {
	m, err := database.NewMigrator(cfg, log.WithComponent("migrate"))
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}

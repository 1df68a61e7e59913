package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"

	"executor-metrics-backend/config"
	"executor-metrics-backend/internal/controller"
	"executor-metrics-backend/internal/database"
	"executor-metrics-backend/internal/elasticsearch"
	"executor-metrics-backend/internal/filestate"
	"executor-metrics-backend/internal/kafka"
	"executor-metrics-backend/internal/parser"
	"executor-metrics-backend/internal/repository"
	"executor-metrics-backend/internal/scheduler"
	"executor-metrics-backend/internal/series"
	"executor-metrics-backend/internal/service"
	"executor-metrics-backend/internal/store"
	"executor-metrics-backend/internal/timescaledb"
)

// @title           Executor Metrics API
// @version         1.0
// @description     Discovers the metrics reported by a run's executors and serves per-host charts aligned to job and stage submissions, historically and live.

// @host      localhost:8080
// @BasePath  /
// @schemes   http

// @tag.name         runs
// @tag.description  Runs with stored samples
// @tag.name         charts
// @tag.description  Metric discovery and per-host charts
// @tag.name         timeline
// @tag.description  Job and stage submission markers
// @tag.name         live
// @tag.description  Live chart websocket

func main() {
	app := fx.New(
		// Core Dependencies
		fx.Provide(
			config.NewConfig,
			series.NewBuilderFromConfig,
		),
		// Infrastructure Dependencies
		fx.Provide(
			NewGinEngine,
			NewMarkerRepository,
			NewFileTracker,
			timescaledb.ProvideTimescaleDBPool,
			timescaledb.NewTimescaleSampleRepository,
			elasticsearch.NewDescriptionStore,
			kafka.NewKafkaSampleProducer,
			kafka.NewKafkaConsumerFactory,
			parser.NewJSONSampleParser,
			store.NewInMemorySessionStore,
		),
		// Services and controllers
		fx.Provide(
			service.NewHistoryImportService,
			service.NewCollectorService,
			service.NewChartService,
			service.NewLiveService,
			controller.NewChartController,
			controller.NewLiveController,
		),
		fx.Invoke(
			RegisterAPIRoutes,
			RegisterScheduler,
		),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}
	<-app.Done()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStop()
	log.Info().Msg("Shutting down application...")
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown due to error or timeout")
	}
	log.Info().Msg("All background processes finished. Exiting.")
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	return r
}

func RegisterAPIRoutes(
	lifecycle fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	chartController *controller.ChartController,
	liveController *controller.LiveController,
) {
	controller.RegisterChartRoutes(router, chartController)
	controller.RegisterLiveRoutes(router, liveController)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Starting HTTP server on port %s", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error().Err(err).Msg("HTTP server ListenAndServe error")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Shutting down HTTP server...")
			return server.Shutdown(ctx)
		},
	})
}

// --- Factory Functions ---

// NewMarkerRepository uses the job tracker database when one is configured.
func NewMarkerRepository(cfg *config.Config) (repository.MarkerRepository, error) {
	if cfg.Database.Host == "" {
		log.Warn().Msg("DATABASE_HOST not set, keeping timeline events in memory")
		return repository.NewMemoryMarkerRepository(), nil
	}
	db, err := database.NewDB(cfg)
	if err != nil {
		return nil, err
	}
	return repository.NewGormMarkerRepository(db), nil
}

func NewFileTracker(cfg *config.Config) filestate.Tracker {
	return filestate.NewTracker(cfg.FileState.FilePath)
}

// --- Invoker Functions ---

func RegisterScheduler(lc fx.Lifecycle, cfg *config.Config, history service.HistoryImportService, collector service.CollectorService) error {
	_, err := scheduler.NewScheduler(lc, cfg, history, collector)
	return err
}

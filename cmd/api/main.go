// Package main provides the entrypoint for the nimbusgraph routing API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nimbusgraph/nimbusgraph/internal/api"
	"github.com/nimbusgraph/nimbusgraph/internal/api/middleware"
	"github.com/nimbusgraph/nimbusgraph/internal/boundaryapi"
	"github.com/nimbusgraph/nimbusgraph/internal/config"
	"github.com/nimbusgraph/nimbusgraph/internal/database"
	"github.com/nimbusgraph/nimbusgraph/internal/forecastapi"
	"github.com/nimbusgraph/nimbusgraph/internal/geonodecache"
	"github.com/nimbusgraph/nimbusgraph/internal/graphbuilder"
	"github.com/nimbusgraph/nimbusgraph/internal/graphrouter"
	"github.com/nimbusgraph/nimbusgraph/internal/kvcache"
	"github.com/nimbusgraph/nimbusgraph/internal/orchestrator"
	"github.com/nimbusgraph/nimbusgraph/internal/placealerts"
	"github.com/nimbusgraph/nimbusgraph/internal/relstore"
	"github.com/nimbusgraph/nimbusgraph/internal/routeplaces"
	"github.com/nimbusgraph/nimbusgraph/internal/routerapi"
	"github.com/nimbusgraph/nimbusgraph/internal/seeder"
	"github.com/nimbusgraph/nimbusgraph/internal/singleflight"
	"github.com/nimbusgraph/nimbusgraph/internal/telemetry"
	"github.com/nimbusgraph/nimbusgraph/internal/tzindex"
	"github.com/nimbusgraph/nimbusgraph/internal/weathercache"
	"github.com/nimbusgraph/nimbusgraph/internal/weatheroverlay"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "nimbusgraph-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting nimbusgraph API")

	cfg := config.FromEnv()

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	pool, err := database.Connect(ctx, cfg.Database.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().Str("host", cfg.Database.Host).Int("port", cfg.Database.Port).Str("database", cfg.Database.Database).Msg("database connected")

	kv, err := kvcache.New(ctx, cfg.Redis.Addr, kvcache.WithPoolSize(cfg.Redis.PoolMax))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer func() { _ = kv.Close() }()
	log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected")

	rel := relstore.New(pool, log)

	geoNodes := geonodecache.New(kv, rel, log)
	if err := geoNodes.LoadFromRelStore(ctx, rel); err != nil {
		log.Warn().Err(err).Msg("geonodecache: initial load failed, nearest-node lookups will fall back to relstore")
	} else {
		log.Info().Int("nodes", geoNodes.Loaded()).Msg("geonodecache: warmed")
	}

	tz := tzindex.LongitudeApproximation{}
	weatherCache := weathercache.New(kv, rel, tz, weathercache.Config{MaxStale: cfg.Tuning.MaxStaleSeconds}, log)
	routePlaces := routeplaces.New(kv, rel, log)
	dedup := singleflight.New(kv, log)

	forecastClient := forecastapi.NewClient(forecastapi.ClientConfig{BaseURL: cfg.Providers.ForecastBaseURL, Logger: log})
	routerClient := routerapi.NewClient(routerapi.ClientConfig{BaseURL: cfg.Providers.RouterBaseURL, Logger: log})
	boundaryClient := boundaryapi.NewClient(boundaryapi.ClientConfig{BaseURL: cfg.Providers.BoundaryBaseURL, Logger: log})

	graphRouter := graphrouter.New(rel, log)
	graphBuilder := graphbuilder.New(rel, graphRouter, routerClient, log)
	weatherOverlay := weatheroverlay.New(weatherCache, dedup, forecastClient, weatheroverlay.Config{
		H3Resolution:     cfg.Tuning.H3Resolution,
		ParallelRequests: cfg.Tuning.ParallelWeatherReqs,
	}, log)
	alertFinder := placealerts.New(rel, weatherCache, routePlaces, log)
	placeSeeder := seeder.New(rel, boundaryClient, log)

	core := orchestrator.New(orchestrator.CoreServices{
		Places:  rel,
		Seeder:  placeSeeder,
		Router:  graphRouter,
		Builder: graphBuilder,
		Weather: weatherOverlay,
		Alerts:  alertFinder,
		Logger:  log,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Planner:     core,
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

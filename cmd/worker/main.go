// Package main provides the entrypoint for the nimbusgraph background
// weather cache refresh worker.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nimbusgraph/nimbusgraph/internal/config"
	"github.com/nimbusgraph/nimbusgraph/internal/database"
	"github.com/nimbusgraph/nimbusgraph/internal/forecastapi"
	"github.com/nimbusgraph/nimbusgraph/internal/kvcache"
	"github.com/nimbusgraph/nimbusgraph/internal/refreshworker"
	"github.com/nimbusgraph/nimbusgraph/internal/relstore"
	"github.com/nimbusgraph/nimbusgraph/internal/tzindex"
	"github.com/nimbusgraph/nimbusgraph/internal/weathercache"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// refreshInterval is how often the worker re-warms its configured hubs.
const refreshInterval = 15 * time.Minute

func main() {
	const serviceName = "nimbusgraph-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting nimbusgraph worker")

	cfg := config.FromEnv()

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8081"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.Connect(ctx, cfg.Database.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	kv, err := kvcache.New(ctx, cfg.Redis.Addr, kvcache.WithPoolSize(cfg.Redis.PoolMax))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer func() { _ = kv.Close() }()

	rel := relstore.New(pool, log)
	tz := tzindex.LongitudeApproximation{}
	weatherCache := weathercache.New(kv, rel, tz, weathercache.Config{MaxStale: cfg.Tuning.MaxStaleSeconds}, log)
	forecastClient := forecastapi.NewClient(forecastapi.ClientConfig{BaseURL: cfg.Providers.ForecastBaseURL, Logger: log})

	job := refreshworker.NewJob(refreshworker.DefaultConfig(), forecastClient, weatherCache, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","version":"` + Version + `"}`))
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()

		sweep := func() {
			n, err := rel.WeatherCacheSweepExpired(ctx, cfg.Tuning.MaxStaleSeconds)
			if err != nil {
				log.Warn().Err(err).Msg("weather cache TTL sweep failed")
				return
			}
			log.Info().Int("rows", n).Msg("weather cache TTL sweep complete")
		}

		job.Run(ctx)
		sweep()

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("refresh loop stopped")
				return
			case <-ticker.C:
				job.Run(ctx)
				sweep()
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

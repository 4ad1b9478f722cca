// Package config aggregates the routing cache engine's environment-driven
// tunables.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/nimbusgraph/nimbusgraph/internal/database"
)

// Config is the engine-wide configuration, populated from environment
// variables.
type Config struct {
	Database Database
	Redis    Redis
	Tuning   Tuning
	Providers Providers
}

// Database wraps internal/database.Config so main only reads one struct.
type Database struct {
	database.Config
}

// Redis holds the KVCache connection parameters.
type Redis struct {
	Addr     string
	PoolMax  int
}

// Tuning holds the dynamic knobs referenced across components.
type Tuning struct {
	H3Resolution          int
	WeatherCacheTTLFloor  time.Duration
	MaxStaleSeconds       time.Duration
	ParallelWeatherReqs   int
	SplitPointTolerance   float64
	MapMatchThresholdM    float64
	RouteSampleIntervalKm float64
	OverpassBatchRadiusM  float64
}

// Providers holds the base URLs of the external HTTP providers.
type Providers struct {
	RouterBaseURL    string
	ForecastBaseURL  string
	BoundaryBaseURL  string
}

// FromEnv loads Config from the process environment, falling back to
// documented defaults for every unset variable.
func FromEnv() Config {
	return Config{
		Database: Database{Config: database.ConfigFromEnv()},
		Redis: Redis{
			Addr:    getEnv("KV_ADDR", "localhost:6379"),
			PoolMax: getEnvInt("KV_POOL_MAX", 50),
		},
		Tuning: Tuning{
			H3Resolution:          getEnvInt("H3_RESOLUTION", 7),
			WeatherCacheTTLFloor:  getEnvSeconds("H3_WEATHER_CACHE_TTL", 3600),
			MaxStaleSeconds:       getEnvSeconds("MAX_STALE_SECONDS", 3600),
			ParallelWeatherReqs:   getEnvInt("PARALLEL_WEATHER_REQUESTS", 40),
			SplitPointTolerance:   getEnvFloat("SPLIT_POINT_TOLERANCE", 1.10),
			MapMatchThresholdM:    getEnvFloat("MAP_MATCH_THRESHOLD_M", 50),
			RouteSampleIntervalKm: getEnvFloat("ROUTE_SAMPLE_INTERVAL_KM", 1.0),
			OverpassBatchRadiusM:  getEnvFloat("OVERPASS_BATCH_RADIUS_M", 3000),
		},
		Providers: Providers{
			RouterBaseURL:   getEnv("ROUTER_BASE_URL", ""),
			ForecastBaseURL: getEnv("FORECAST_BASE_URL", ""),
			BoundaryBaseURL: getEnv("BOUNDARY_BASE_URL", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvSeconds(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackSeconds)) * time.Second
}

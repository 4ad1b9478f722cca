// Package refreshworker periodically re-warms the weather cache for a
// fixed list of commuter hubs, so a cache miss on the request path is rare
// for the places people actually route between.
package refreshworker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

// Point is a geographic coordinate to keep warm.
type Point struct {
	Lat float64
	Lon float64
}

// Target groups the points of one named hub, refreshed together.
type Target struct {
	Name     string
	Points   []Point
	Priority int
}

// Config holds the tunables of one refresh pass.
type Config struct {
	Targets     []Target
	Concurrency int
	Timeout     time.Duration
}

// DefaultConfig returns the default refresh configuration.
func DefaultConfig() Config {
	return Config{
		Targets:     DefaultTargets(),
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// DefaultTargets lists the Randstad metropolitan area and its major
// commuter corridors.
func DefaultTargets() []Target {
	return []Target{
		{Name: "Amsterdam", Priority: 1, Points: []Point{
			{Lat: 52.3676, Lon: 4.9041},
			{Lat: 52.3386, Lon: 4.8919},
			{Lat: 52.3114, Lon: 4.9469},
		}},
		{Name: "Rotterdam", Priority: 1, Points: []Point{
			{Lat: 51.9244, Lon: 4.4777},
			{Lat: 51.9062, Lon: 4.4874},
		}},
		{Name: "Den Haag", Priority: 1, Points: []Point{
			{Lat: 52.0705, Lon: 4.3007},
		}},
		{Name: "Utrecht", Priority: 1, Points: []Point{
			{Lat: 52.0894, Lon: 5.1102},
			{Lat: 52.0627, Lon: 5.1179},
		}},
		{Name: "Eindhoven", Priority: 2, Points: []Point{
			{Lat: 51.4416, Lon: 5.4697},
		}},
		{Name: "Schiphol", Priority: 2, Points: []Point{
			{Lat: 52.3105, Lon: 4.7683},
		}},
	}
}

// AllPoints flattens every target's points, ordered by target declaration
// order (which is itself priority-ordered in DefaultTargets).
func (c Config) AllPoints() []Point {
	var points []Point
	for _, t := range c.Targets {
		points = append(points, t.Points...)
	}
	return points
}

// TotalPoints returns the number of points a refresh pass will visit.
func (c Config) TotalPoints() int {
	total := 0
	for _, t := range c.Targets {
		total += len(t.Points)
	}
	return total
}

// Forecast is the subset of ForecastAPI used to fetch a fresh payload.
type Forecast interface {
	GetHourly(ctx context.Context, lat, lon float64, forecastTime time.Time) (graph.WeatherPayload, string, error)
}

// Cache is the subset of WeatherCache used to write a refreshed payload.
type Cache interface {
	Set(ctx context.Context, lat, lon float64, forecastTime time.Time, payload graph.WeatherPayload, modelRun string) error
}

// Job runs one refresh pass over Config's targets.
type Job struct {
	config   Config
	forecast Forecast
	cache    Cache
	logger   zerolog.Logger

	metrics Metrics
}

// Metrics accumulates counters across every Run call.
type Metrics struct {
	TotalRuns        int64
	PointsRefreshed  int64
	PointsFailed     int64
	LastRunAt        time.Time
	LastRunDuration  time.Duration
}

// NewJob builds a Job. An empty cfg.Targets falls back to DefaultConfig.
func NewJob(cfg Config, forecast Forecast, cache Cache, logger zerolog.Logger) *Job {
	if len(cfg.Targets) == 0 {
		cfg = DefaultConfig()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Job{config: cfg, forecast: forecast, cache: cache, logger: logger.With().Str("component", "refreshworker").Logger()}
}

// Result is the outcome of one Run call.
type Result struct {
	StartTime   time.Time
	Duration    time.Duration
	TotalPoints int
	Succeeded   int
	Failed      int
}

// Run fetches a fresh forecast for every configured point and writes it
// through Cache, fanning the work out across config.Concurrency workers.
func (j *Job) Run(ctx context.Context) *Result {
	start := time.Now()
	points := j.config.AllPoints()

	result := &Result{StartTime: start, TotalPoints: len(points)}

	j.logger.Info().Int("total_points", result.TotalPoints).Int("concurrency", j.config.Concurrency).Msg("starting weather cache refresh")

	pointsCh := make(chan Point, len(points))
	var succeeded, failed int64

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range pointsCh {
				if j.refreshPoint(ctx, p) {
					atomic.AddInt64(&succeeded, 1)
				} else {
					atomic.AddInt64(&failed, 1)
				}
			}
		}()
	}

	for _, p := range points {
		pointsCh <- p
	}
	close(pointsCh)
	wg.Wait()

	result.Succeeded = int(succeeded)
	result.Failed = int(failed)
	result.Duration = time.Since(start)

	j.metrics.TotalRuns++
	j.metrics.PointsRefreshed += succeeded
	j.metrics.PointsFailed += failed
	j.metrics.LastRunAt = time.Now()
	j.metrics.LastRunDuration = result.Duration

	j.logger.Info().Dur("duration", result.Duration).Int("succeeded", result.Succeeded).Int("failed", result.Failed).Msg("weather cache refresh completed")

	return result
}

func (j *Job) refreshPoint(ctx context.Context, p Point) bool {
	pointCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	now := time.Now()
	payload, modelRun, err := j.forecast.GetHourly(pointCtx, p.Lat, p.Lon, now)
	if err != nil {
		j.logger.Warn().Err(err).Float64("lat", p.Lat).Float64("lon", p.Lon).Msg("refreshworker: forecast fetch failed")
		return false
	}

	if err := j.cache.Set(pointCtx, p.Lat, p.Lon, now, payload, modelRun); err != nil {
		j.logger.Warn().Err(err).Float64("lat", p.Lat).Float64("lon", p.Lon).Msg("refreshworker: cache write failed")
		return false
	}
	return true
}

// MetricsSnapshot returns the job's accumulated counters.
func (j *Job) MetricsSnapshot() Metrics {
	return j.metrics
}

// Package weatheroverlay annotates a materialized route with forecast data:
// deterministic arrival times are walked over the route's H3 cells, and
// WeatherCache (behind Singleflight) is consulted or populated for each one.
package weatheroverlay

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/nimbusgraph/nimbusgraph/internal/geoindex"
	"github.com/nimbusgraph/nimbusgraph/internal/graph"
	"github.com/nimbusgraph/nimbusgraph/internal/singleflight"
	"github.com/nimbusgraph/nimbusgraph/internal/weathercache"
)

// DefaultH3Resolution is the default H3 cell granularity used for
// deduplicating points along a route's geometry.
const DefaultH3Resolution = 7

// DefaultParallelRequests bounds concurrent external forecast fetches,
// per configuration key PARALLEL_WEATHER_REQUESTS.
const DefaultParallelRequests = 40

// DefaultLeaseTimeout is the Singleflight lease TTL for a forecast fetch.
const DefaultLeaseTimeout = 10 * time.Second

// Cache is the subset of WeatherCache used by the overlay.
type Cache interface {
	Get(ctx context.Context, lat, lon float64, forecastTime time.Time, allowStale bool) (*weathercache.Result, error)
	Set(ctx context.Context, lat, lon float64, forecastTime time.Time, payload graph.WeatherPayload, modelRun string) error
}

// Dedup is the subset of Singleflight used to collapse concurrent fetches
// of the same cell across process boundaries.
type Dedup interface {
	GetOrFetch(ctx context.Context, key string, fetch singleflight.FetchFunc, timeout time.Duration) ([]byte, error)
}

// ForecastProvider is the external hourly-forecast API.
type ForecastProvider interface {
	GetHourly(ctx context.Context, lat, lon float64, forecastTime time.Time) (graph.WeatherPayload, string, error)
}

// Config configures non-default tunables.
type Config struct {
	H3Resolution     int
	ParallelRequests int
	LeaseTimeout     time.Duration
}

// Overlay annotates a materialized route with per-cell forecast data.
type Overlay struct {
	cache      Cache
	dedup      Dedup
	forecast   ForecastProvider
	resolution int
	sem        *semaphore.Weighted
	leaseTTL   time.Duration
	logger     zerolog.Logger
}

// New builds an Overlay.
func New(cache Cache, dedup Dedup, forecast ForecastProvider, cfg Config, logger zerolog.Logger) *Overlay {
	resolution := cfg.H3Resolution
	if resolution <= 0 {
		resolution = DefaultH3Resolution
	}
	parallel := cfg.ParallelRequests
	if parallel <= 0 {
		parallel = DefaultParallelRequests
	}
	leaseTTL := cfg.LeaseTimeout
	if leaseTTL <= 0 {
		leaseTTL = DefaultLeaseTimeout
	}
	return &Overlay{
		cache:      cache,
		dedup:      dedup,
		forecast:   forecast,
		resolution: resolution,
		sem:        semaphore.NewWeighted(int64(parallel)),
		leaseTTL:   leaseTTL,
		logger:     logger.With().Str("component", "weatheroverlay").Logger(),
	}
}

// NodeWeather is the resolved arrival time and cell for one node on the path.
type NodeWeather struct {
	NodeID      int64
	ArrivalTime time.Time
	H3Index     string
}

// CellWeather is the resolved forecast for one deduplicated H3 cell.
type CellWeather struct {
	H3Index string
	Lat     float64
	Lon     float64
	Payload graph.WeatherPayload
	Stale   bool
}

// Stats reports cache effectiveness for one Annotate call.
type Stats struct {
	TotalCells  int
	Hits        int
	Misses      int
	StaleServes int
	NewAPICalls int
}

// Result is the annotated output of Annotate. Duration is never touched:
// only Nodes/Cells/Summary/Stats are attached alongside the path's own
// deterministic totals.
type Result struct {
	Nodes   []NodeWeather
	Cells   []CellWeather
	Summary string
	Stats   Stats
}

type cellEntry struct {
	h3            string
	lat, lon      float64
	earliest      time.Time
	earliestKnown bool
}

// Annotate walks path's geometry, computing deterministic arrival times,
// deduplicating H3 cells, and fetching weather for each cell (cache-first,
// falling through Singleflight to the external forecast provider on miss).
func (o *Overlay) Annotate(ctx context.Context, path *graph.Path, departureTime time.Time) (*Result, error) {
	if path == nil || len(path.NodeIDs) == 0 {
		return &Result{}, nil
	}

	arrivals := arrivalTimes(path, departureTime)

	nodes := make([]NodeWeather, len(path.NodeIDs))
	cells := make(map[string]*cellEntry)
	order := make([]string, 0, len(path.NodeIDs))

	for i, nodeID := range path.NodeIDs {
		point := path.Geometry[i]
		h3 := geoindex.H3Cell(point.Lat, point.Lon, o.resolution)
		nodes[i] = NodeWeather{NodeID: nodeID, ArrivalTime: arrivals[i], H3Index: h3}

		entry, exists := cells[h3]
		if !exists {
			entry = &cellEntry{h3: h3, lat: point.Lat, lon: point.Lon}
			cells[h3] = entry
			order = append(order, h3)
		}
		if !entry.earliestKnown || arrivals[i].Before(entry.earliest) {
			entry.earliest = arrivals[i]
			entry.earliestKnown = true
		}
	}

	stats := Stats{TotalCells: len(order)}
	results := make([]CellWeather, len(order))
	resultErrs := make([]error, len(order))

	var wg sync.WaitGroup
	var mu sync.Mutex

	for idx, h3 := range order {
		entry := cells[h3]
		wg.Add(1)
		go func(idx int, entry *cellEntry) {
			defer wg.Done()
			if err := o.sem.Acquire(ctx, 1); err != nil {
				resultErrs[idx] = err
				return
			}
			defer o.sem.Release(1)

			cw, hit, stale, newCall, err := o.resolveCell(ctx, entry)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				resultErrs[idx] = err
				return
			}
			results[idx] = cw
			if hit {
				stats.Hits++
			} else {
				stats.Misses++
			}
			if stale {
				stats.StaleServes++
			}
			if newCall {
				stats.NewAPICalls++
			}
		}(idx, entry)
	}
	wg.Wait()

	final := make([]CellWeather, 0, len(results))
	for i, cw := range results {
		if resultErrs[i] != nil {
			o.logger.Warn().Err(resultErrs[i]).Str("h3", order[i]).Msg("weatheroverlay: cell resolution failed")
			continue
		}
		final = append(final, cw)
	}
	sort.Slice(final, func(i, j int) bool { return final[i].H3Index < final[j].H3Index })

	return &Result{
		Nodes:   nodes,
		Cells:   final,
		Summary: summarize(final),
		Stats:   stats,
	}, nil
}

// resolveCell fetches or populates weather for one cell, returning whether
// it was served from cache, served stale, and whether a new API call
// resulted.
func (o *Overlay) resolveCell(ctx context.Context, entry *cellEntry) (CellWeather, bool, bool, bool, error) {
	forecastTime := entry.earliest
	res, err := o.cache.Get(ctx, entry.lat, entry.lon, forecastTime, true)
	if err == nil {
		return CellWeather{H3Index: entry.h3, Lat: entry.lat, Lon: entry.lon, Payload: res.Cell.Payload, Stale: res.Stale}, true, res.Stale, false, nil
	}

	key := weathercache.KeyPrefix(entry.lat, entry.lon, forecastTime)
	raw, fetchErr := o.dedup.GetOrFetch(ctx, key, func(ctx context.Context) ([]byte, error) {
		payload, modelRun, err := o.forecast.GetHourly(ctx, entry.lat, entry.lon, forecastTime)
		if err != nil {
			return nil, err
		}
		if err := o.cache.Set(ctx, entry.lat, entry.lon, forecastTime, payload, modelRun); err != nil {
			o.logger.Warn().Err(err).Str("h3", entry.h3).Msg("weatheroverlay: cache write failed")
		}
		return []byte(payload.Category), nil
	}, o.leaseTTL)
	if fetchErr != nil {
		return CellWeather{}, false, false, false, fmt.Errorf("weatheroverlay: resolve cell %s: %w", entry.h3, fetchErr)
	}
	_ = raw

	res, err = o.cache.Get(ctx, entry.lat, entry.lon, forecastTime, true)
	if err != nil {
		return CellWeather{}, false, false, false, fmt.Errorf("weatheroverlay: cell %s unresolved after fetch: %w", entry.h3, err)
	}
	return CellWeather{H3Index: entry.h3, Lat: entry.lat, Lon: entry.lon, Payload: res.Cell.Payload, Stale: res.Stale}, false, res.Stale, true, nil
}

// arrivalTimes computes the deterministic, weather-independent arrival
// time at every node on path given a departure time.
func arrivalTimes(path *graph.Path, departureTime time.Time) []time.Time {
	out := make([]time.Time, len(path.NodeIDs))
	if len(out) == 0 {
		return out
	}
	out[0] = departureTime
	elapsed := 0.0
	for i := 1; i < len(out); i++ {
		if i-1 < len(path.Edges) {
			elapsed += path.Edges[i-1].DurationS
		}
		out[i] = departureTime.Add(time.Duration(elapsed * float64(time.Second)))
	}
	return out
}

var categoryDescriptions = map[string]string{
	"clear":        "Clear",
	"cloudy":       "Cloudy",
	"fog":          "Foggy",
	"rain":         "Rainy",
	"snow":         "Snowy",
	"thunderstorm": "Stormy",
}

// summarize produces the one-sentence weather summary across cells: a
// single dominant category reads naturally, two or more reads as "mixed".
func summarize(cells []CellWeather) string {
	if len(cells) == 0 {
		return "No weather data available."
	}
	seen := make(map[string]bool)
	order := make([]string, 0, 6)
	for _, c := range cells {
		cat := c.Payload.Category
		if cat == "" {
			continue
		}
		if !seen[cat] {
			seen[cat] = true
			order = append(order, cat)
		}
	}
	if len(order) == 0 {
		return "No weather data available."
	}
	if len(order) == 1 {
		desc := categoryDescriptions[order[0]]
		if desc == "" {
			desc = capitalize(order[0])
		}
		return fmt.Sprintf("%s conditions expected.", desc)
	}
	return fmt.Sprintf("Mixed conditions: %s.", strings.Join(order, ", "))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Package placealerts attaches forecasts to the named places a route
// passes through, interpolating each place's arrival time from its
// position along the route.
package placealerts

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
	"github.com/nimbusgraph/nimbusgraph/internal/weathercache"
)

// PlaceFinder is the subset of RelStore used to enumerate places whose
// boundary contains a given point.
type PlaceFinder interface {
	PlacesContaining(ctx context.Context, lat, lon float64) ([]graph.PlaceContainment, error)
}

// Cache is the subset of WeatherCache used to fetch a place's forecast.
type Cache interface {
	Get(ctx context.Context, lat, lon float64, forecastTime time.Time, allowStale bool) (*weathercache.Result, error)
}

// RouteCache is the subset of RoutePlacesCache used to skip the
// boundary-containment scan on a (source, target) pair seen before.
type RouteCache interface {
	Get(ctx context.Context, src, dst int64) ([]graph.RoutePlace, error)
	Set(ctx context.Context, src, dst int64, places []graph.RoutePlace) error
}

// Finder attaches arrival-interpolated forecasts to the places a route passes through.
type Finder struct {
	places PlaceFinder
	cache  Cache
	routes RouteCache
	logger zerolog.Logger
}

// New builds a Finder. routes may be nil, in which case every call scans
// PlaceFinder directly.
func New(places PlaceFinder, cache Cache, routes RouteCache, logger zerolog.Logger) *Finder {
	return &Finder{places: places, cache: cache, routes: routes, logger: logger.With().Str("component", "placealerts").Logger()}
}

// Alert is one place observed along the route, with its interpolated
// arrival time and forecast.
type Alert struct {
	Name        string
	Type        graph.PlaceType
	Lat         float64
	Lon         float64
	ArrivalTime time.Time
	Weather     graph.WeatherPayload
	EntryIndex  int
}

// Find enumerates the places whose boundary contains any of geometry's
// sampled coordinates, deduplicates by place id, interpolates each hit's
// arrival time linearly across totalDuration by entry index, and attaches
// its forecast. The result is ordered by entry index (route order).
//
// When a RouteCache is configured, a prior (srcPlaceID, dstPlaceID) result
// skips the boundary-containment scan entirely: the cached place list's
// own order stands in for entry index.
func (f *Finder) Find(ctx context.Context, srcPlaceID, dstPlaceID int64, geometry []graph.Coordinate, departureTime time.Time, totalDuration time.Duration) ([]Alert, error) {
	if len(geometry) == 0 {
		return nil, nil
	}

	if f.routes != nil {
		if cached, err := f.routes.Get(ctx, srcPlaceID, dstPlaceID); err == nil && len(cached) > 0 {
			return f.alertsFromCachedPlaces(ctx, cached, departureTime, totalDuration), nil
		}
	}

	seen := make(map[int64]bool)
	var alerts []Alert
	var forCache []graph.RoutePlace

	for i, point := range geometry {
		hits, err := f.places.PlacesContaining(ctx, point.Lat, point.Lon)
		if err != nil {
			f.logger.Warn().Err(err).Int("entry_index", i).Msg("placealerts: places containing lookup failed")
			continue
		}
		for _, hit := range hits {
			if seen[hit.PlaceID] {
				continue
			}
			seen[hit.PlaceID] = true

			progress := float64(i) / float64(len(geometry)-1)
			if len(geometry) == 1 {
				progress = 0
			}
			arrival := departureTime.Add(time.Duration(progress * float64(totalDuration)))

			var weather graph.WeatherPayload
			res, err := f.cache.Get(ctx, point.Lat, point.Lon, arrival, true)
			if err != nil {
				f.logger.Warn().Err(err).Str("place", hit.Name).Msg("placealerts: forecast unavailable")
			} else {
				weather = res.Cell.Payload
			}

			alerts = append(alerts, Alert{
				Name:        hit.Name,
				Type:        hit.Type,
				Lat:         point.Lat,
				Lon:         point.Lon,
				ArrivalTime: arrival,
				Weather:     weather,
				EntryIndex:  i,
			})
			forCache = append(forCache, graph.RoutePlace{Name: hit.Name, Type: hit.Type, Lat: point.Lat, Lon: point.Lon})
		}
	}

	sort.SliceStable(alerts, func(a, b int) bool { return alerts[a].EntryIndex < alerts[b].EntryIndex })

	if f.routes != nil && len(forCache) > 0 {
		if err := f.routes.Set(ctx, srcPlaceID, dstPlaceID, forCache); err != nil {
			f.logger.Warn().Err(err).Msg("placealerts: route cache write failed")
		}
	}

	return alerts, nil
}

// alertsFromCachedPlaces rebuilds alerts from a prior RouteCache hit. The
// cached list's own order approximates route order; it was written in the
// same scan order Find would otherwise produce.
func (f *Finder) alertsFromCachedPlaces(ctx context.Context, places []graph.RoutePlace, departureTime time.Time, totalDuration time.Duration) []Alert {
	alerts := make([]Alert, len(places))
	for i, p := range places {
		progress := float64(i) / float64(len(places)-1)
		if len(places) == 1 {
			progress = 0
		}
		arrival := departureTime.Add(time.Duration(progress * float64(totalDuration)))

		var weather graph.WeatherPayload
		res, err := f.cache.Get(ctx, p.Lat, p.Lon, arrival, true)
		if err != nil {
			f.logger.Warn().Err(err).Str("place", p.Name).Msg("placealerts: forecast unavailable")
		} else {
			weather = res.Cell.Payload
		}

		alerts[i] = Alert{
			Name:        p.Name,
			Type:        p.Type,
			Lat:         p.Lat,
			Lon:         p.Lon,
			ArrivalTime: arrival,
			Weather:     weather,
			EntryIndex:  i,
		}
	}
	return alerts
}

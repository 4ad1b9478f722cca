// Package orchestrator exposes the single public entry point of the
// routing cache engine, PlanRoute, composing place resolution, graph
// routing, graph growth on miss, and weather/place annotation into one
// deterministic state machine.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
	"github.com/nimbusgraph/nimbusgraph/internal/normalizer"
	"github.com/nimbusgraph/nimbusgraph/internal/placealerts"
	"github.com/nimbusgraph/nimbusgraph/internal/weatheroverlay"
)

// TrafficMultiplier is applied to the reported duration when with_traffic
// is requested; it never touches stored graph durations.
const TrafficMultiplier = 1.30

// Router is GraphRouter's path lookup.
type Router interface {
	FindRoute(ctx context.Context, srcPlaceID, dstPlaceID int64) (*graph.Path, error)
}

// Builder is GraphBuilder's cache-miss handler.
type Builder interface {
	HandleMiss(ctx context.Context, srcPlaceID, dstPlaceID int64, srcCoords, dstCoords graph.Coordinate) (bool, error)
}

// PlaceStore is RelStore's place lookup.
type PlaceStore interface {
	FindPlace(ctx context.Context, normalizedName string, placeType graph.PlaceType, country string) (*graph.Place, error)
}

// PlaceSeeder is Seeder's on-demand place resolution.
type PlaceSeeder interface {
	GetOrSeedPlace(ctx context.Context, name, country string, adminLevel int) (int64, error)
}

// WeatherAnnotator is WeatherOverlay's route annotation.
type WeatherAnnotator interface {
	Annotate(ctx context.Context, path *graph.Path, departureTime time.Time) (*weatheroverlay.Result, error)
}

// AlertFinder is PlaceAlerts' route annotation.
type AlertFinder interface {
	Find(ctx context.Context, srcPlaceID, dstPlaceID int64, geometry []graph.Coordinate, departureTime time.Time, totalDuration time.Duration) ([]placealerts.Alert, error)
}

// CoreServices bundles every component PlanRoute composes.
type CoreServices struct {
	Places   PlaceStore
	Seeder   PlaceSeeder
	Router   Router
	Builder  Builder
	Weather  WeatherAnnotator
	Alerts   AlertFinder
	Logger   zerolog.Logger
}

// Orchestrator is the routing cache engine's single public entry point.
type Orchestrator struct {
	services CoreServices
	logger   zerolog.Logger
}

// New builds an Orchestrator over a fully wired CoreServices.
func New(services CoreServices) *Orchestrator {
	return &Orchestrator{services: services, logger: services.Logger.With().Str("component", "orchestrator").Logger()}
}

// PlanRoute resolves origin and destination names to places, finds or
// builds a route between them, and annotates it with weather and
// place-alert data. withTraffic scales only the reported duration.
func (o *Orchestrator) PlanRoute(ctx context.Context, originName, destName string, originCountry, destCountry string, departureLocal time.Time, withTraffic bool) (*graph.RouteResult, *graph.PlanError) {
	// RESOLVING
	srcPlace, err := o.resolvePlace(ctx, originName, originCountry)
	if err != nil {
		return nil, graph.NewPlanError("unresolved_origin", fmt.Sprintf("could not resolve origin %q", originName), err)
	}
	dstPlace, err := o.resolvePlace(ctx, destName, destCountry)
	if err != nil {
		return nil, graph.NewPlanError("unresolved_destination", fmt.Sprintf("could not resolve destination %q", destName), err)
	}

	// ROUTING
	path, err := o.services.Router.FindRoute(ctx, srcPlace.ID, dstPlace.ID)
	if err != nil {
		return nil, graph.NewPlanError("router_error", "graph router failed", err)
	}

	cacheHit := path != nil

	// BUILDING: at most one retry before giving up.
	if path == nil {
		if _, err := o.services.Builder.HandleMiss(ctx, srcPlace.ID, dstPlace.ID, srcPlace.Center, dstPlace.Center); err != nil {
			return nil, graph.NewPlanError("builder_error", "graph builder failed", err)
		}
		path, err = o.services.Router.FindRoute(ctx, srcPlace.ID, dstPlace.ID)
		if err != nil {
			return nil, graph.NewPlanError("router_error", "graph router failed on retry", err)
		}
		if path == nil {
			return nil, graph.NewPlanError("no_route", "no route found after graph build attempt", graph.ErrNoRoute)
		}
	}

	// WEATHER: overlay and alerts run concurrently over the same geometry.
	var (
		weatherRes *weatheroverlay.Result
		weatherErr error
		alerts     []placealerts.Alert
		alertsErr  error
		wg         sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		weatherRes, weatherErr = o.services.Weather.Annotate(ctx, path, departureLocal)
	}()
	go func() {
		defer wg.Done()
		totalDuration := time.Duration(path.TotalDurationS * float64(time.Second))
		alerts, alertsErr = o.services.Alerts.Find(ctx, srcPlace.ID, dstPlace.ID, path.Geometry, departureLocal, totalDuration)
	}()
	wg.Wait()

	if weatherErr != nil {
		return nil, graph.NewPlanError("weather_error", "weather overlay failed", weatherErr)
	}
	if alertsErr != nil {
		return nil, graph.NewPlanError("alerts_error", "place alerts failed", alertsErr)
	}

	// DONE
	return buildResult(path, weatherRes, alerts, cacheHit, withTraffic), nil
}

func (o *Orchestrator) resolvePlace(ctx context.Context, name, country string) (*graph.Place, error) {
	normalized := normalizer.Normalize(name)

	place, err := o.services.Places.FindPlace(ctx, normalized, "", country)
	if err == nil {
		return place, nil
	}

	placeID, seedErr := o.services.Seeder.GetOrSeedPlace(ctx, name, country, 0)
	if seedErr != nil {
		return nil, fmt.Errorf("%w: %v", graph.ErrUnresolved, seedErr)
	}
	if placeID == 0 {
		return nil, graph.ErrUnresolved
	}

	place, err = o.services.Places.FindPlace(ctx, normalized, "", country)
	if err != nil {
		return nil, fmt.Errorf("%w: seeded place %d not found on re-lookup: %v", graph.ErrUnresolved, placeID, err)
	}
	return place, nil
}

func buildResult(path *graph.Path, weather *weatheroverlay.Result, alerts []placealerts.Alert, cacheHit, withTraffic bool) *graph.RouteResult {
	durationHours := path.TotalDurationS / 3600
	if withTraffic {
		durationHours *= TrafficMultiplier
	}

	cells := make([]graph.WeatherCellSummary, 0, len(weather.Cells))
	for _, c := range weather.Cells {
		cells = append(cells, graph.WeatherCellSummary{H3Index: c.H3Index, Lat: c.Lat, Lon: c.Lon, Weather: c.Payload})
	}

	places := make([]graph.PlaceAlertSummary, 0, len(alerts))
	for _, a := range alerts {
		places = append(places, graph.PlaceAlertSummary{Name: a.Name, Type: a.Type, ArrivalTime: a.ArrivalTime, Weather: a.Weather})
	}

	hitRate := 0.0
	if total := weather.Stats.Hits + weather.Stats.Misses; total > 0 {
		hitRate = float64(weather.Stats.Hits) / float64(total)
	}

	return &graph.RouteResult{
		DistanceKm:     path.TotalDistanceMeters / 1000,
		DurationHours:  durationHours,
		Geometry:       path.Geometry,
		WeatherSummary: weather.Summary,
		WeatherCells:   cells,
		PlacesOnRoute:  places,
		Stats: graph.RouteStats{
			CacheHit:         cacheHit,
			NewAPICalls:      weather.Stats.NewAPICalls,
			CellCacheHitRate: hitRate,
		},
	}
}

package models

import (
	"time"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

// PlanRouteRequest is the body of POST /v1/routes:plan.
type PlanRouteRequest struct {
	Origin            string `json:"origin"`
	Destination       string `json:"destination"`
	OriginCountry     string `json:"origin_country,omitempty"`
	DestinationCountry string `json:"destination_country,omitempty"`
	DepartureLocal    string `json:"departure_local"`
	WithTraffic       bool   `json:"with_traffic"`
}

// Point is a (lat, lon) pair on the wire.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WeatherCell is one annotated H3 cell in a PlanRouteResponse.
type WeatherCell struct {
	H3Index     string  `json:"h3_index"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Category    string  `json:"category"`
	TemperatureC float64 `json:"temperature_c"`
	Stale       bool    `json:"stale,omitempty"`
}

// PlaceAlert is one place-with-forecast entry in a PlanRouteResponse.
type PlaceAlert struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	ArrivalTime string  `json:"arrival_time"`
	Category    string  `json:"category"`
	TemperatureC float64 `json:"temperature_c"`
}

// RouteStats reports cache effectiveness for one plan call.
type RouteStats struct {
	CacheHit         bool    `json:"cache_hit"`
	NewAPICalls      int     `json:"new_api_calls"`
	CellCacheHitRate float64 `json:"cell_cache_hit_rate"`
}

// PlanRouteResponse is the body of a successful POST /v1/routes:plan.
type PlanRouteResponse struct {
	DistanceKm     float64       `json:"distance_km"`
	DurationHours  float64       `json:"duration_hours"`
	Geometry       []Point       `json:"geometry"`
	WeatherSummary string        `json:"weather_summary"`
	WeatherCells   []WeatherCell `json:"weather_cells"`
	PlacesOnRoute  []PlaceAlert  `json:"places_on_route"`
	Stats          RouteStats    `json:"stats"`
}

// NewPlanRouteResponse converts a graph.RouteResult into its wire form.
func NewPlanRouteResponse(r *graph.RouteResult) PlanRouteResponse {
	geometry := make([]Point, len(r.Geometry))
	for i, c := range r.Geometry {
		geometry[i] = Point{Lat: c.Lat, Lon: c.Lon}
	}

	cells := make([]WeatherCell, len(r.WeatherCells))
	for i, c := range r.WeatherCells {
		cells[i] = WeatherCell{
			H3Index:      c.H3Index,
			Lat:          c.Lat,
			Lon:          c.Lon,
			Category:     c.Weather.Category,
			TemperatureC: c.Weather.TemperatureC,
		}
	}

	places := make([]PlaceAlert, len(r.PlacesOnRoute))
	for i, p := range r.PlacesOnRoute {
		places[i] = PlaceAlert{
			Name:         p.Name,
			Type:         string(p.Type),
			ArrivalTime:  p.ArrivalTime.Format(time.RFC3339),
			Category:     p.Weather.Category,
			TemperatureC: p.Weather.TemperatureC,
		}
	}

	return PlanRouteResponse{
		DistanceKm:     r.DistanceKm,
		DurationHours:  r.DurationHours,
		Geometry:       geometry,
		WeatherSummary: r.WeatherSummary,
		WeatherCells:   cells,
		PlacesOnRoute:  places,
		Stats: RouteStats{
			CacheHit:         r.Stats.CacheHit,
			NewAPICalls:      r.Stats.NewAPICalls,
			CellCacheHitRate: r.Stats.CellCacheHitRate,
		},
	}
}

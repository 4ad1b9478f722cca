// Package graph holds the domain types shared by every routing-cache component:
// places, nodes, edges and the cached weather/route-places records they compose into.
// It has no internal dependencies so every other package may depend on it.
package graph

import "time"

// Coordinate is a geographic point.
type Coordinate struct {
	Lat float64
	Lon float64
}

// PlaceType enumerates the kinds of populated area a Place can represent.
type PlaceType string

const (
	PlaceTypeCity    PlaceType = "city"
	PlaceTypeTown    PlaceType = "town"
	PlaceTypeVillage PlaceType = "village"
	PlaceTypeHamlet  PlaceType = "hamlet"
	PlaceTypeSuburb  PlaceType = "suburb"
	PlaceTypeRegion  PlaceType = "region"
)

// Place is the identity of a named populated area.
//
// Invariants: (Name, Type, Province) is unique; if Boundary is present its
// centroid falls within the bounding box of Center; Geohash always matches
// Center at precision 6.
type Place struct {
	ID       int64
	Name     string // canonical form, produced by the normalizer
	Type     PlaceType
	Country  string
	Province string // empty when not applicable
	Center   Coordinate
	Boundary []Coordinate // closed simple polygon, nil when unknown
	Geohash  string       // length 6
	Metadata map[string]string
}

// NodeType distinguishes a plain waypoint from an access point of a place.
type NodeType string

const (
	NodeTypeWaypoint   NodeType = "waypoint"
	NodeTypeAccessPoint NodeType = "access_point"
)

// Node is a point on the road graph.
//
// Invariants: Geohash matches Geometry at precision 7; a node is an access
// point of P iff LinkedPlaceID == P.
type Node struct {
	ID            int64
	Geometry      Coordinate
	Geohash       string // length 7
	Type          NodeType
	LinkedPlaceID *int64 // nil until promoted to an access node
}

// IsAccessPointOf reports whether the node is an access point of place id.
func (n Node) IsAccessPointOf(placeID int64) bool {
	return n.LinkedPlaceID != nil && *n.LinkedPlaceID == placeID
}

// Edge is a directed segment between two nodes.
//
// Invariant: BaseDurationSeconds = DistanceMeters / (MaxSpeedKmh / 3.6); this
// is a pure function of distance and speed, weather never changes it.
type Edge struct {
	ID                  int64
	SourceNode          int64
	TargetNode          int64
	Geometry            []Coordinate
	DistanceMeters      float64
	MaxSpeedKmh         float64
	BaseDurationSeconds float64
	RoadType            string // optional road-class hint, empty when unknown
}

// BaseDuration computes the pure-function duration for a distance/speed pair.
func BaseDuration(distanceMeters, maxSpeedKmh float64) float64 {
	if maxSpeedKmh <= 0 {
		return 0
	}
	return distanceMeters / (maxSpeedKmh / 3.6)
}

// NodeCoordinate is one (node id, coordinate) pair, returned by bulk node
// queries and shared across every package that consumes RelStore's node
// rows, so narrow consumer interfaces can name RelStore's own return types.
type NodeCoordinate struct {
	NodeID int64
	Coord  Coordinate
}

// NearestNode is one row of a pure-distance nearest-node query, nearest
// node first.
type NearestNode struct {
	NodeID     int64
	DistanceKm float64
}

// PathStep is one row of a materialized shortest-path result.
type PathStep struct {
	Seq            int
	NodeID         int64
	EdgeID         int64
	Cost           float64
	AggCost        float64
	DistanceMeters float64
	DurationS      float64
	Geometry       Coordinate
}

// GeoMember is one result of a geospatial radius query.
type GeoMember struct {
	Name     string
	DistKm   float64
	Lon, Lat float64
}

// HubNode is a candidate split-point for GraphBuilder: an access node of a
// city/town-type place within range of a prospective destination.
type HubNode struct {
	NodeID       int64
	PlaceID      int64
	DistanceKm   float64
	NodeGeometry Coordinate
}

// PathEdge is one traversed edge within a materialized Path.
type PathEdge struct {
	EdgeID         int64
	SourceNode     int64
	TargetNode     int64
	DistanceMeters float64
	DurationS      float64
	RoadType       string
}

// Path is a materialized route between two access nodes.
//
// Invariant: TotalDurationS and TotalDistanceMeters are the sum of
// Edges' corresponding fields; Geometry has one point per node in NodeIDs.
type Path struct {
	NodeIDs             []int64
	Edges               []PathEdge
	Geometry            []Coordinate
	TotalDistanceMeters float64
	TotalDurationS      float64
}

// WeatherCell is cached weather for one H3/geohash cell at one forecast hour
// from one model run.
type WeatherCell struct {
	CacheKey      string
	H3Index       string
	ForecastHour  time.Time // UTC, truncated to the hour
	ModelRunTime  string    // sanitized upstream model-run tag, "unknown" when absent
	Payload       WeatherPayload
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// WeatherPayload is the explicit, typed shape of a forecast reading. It
// replaces the dynamic dict shapes of the upstream API response.
type WeatherPayload struct {
	TemperatureC float64
	WeatherCode  int
	Category     string // clear|cloudy|rain|snow|fog|thunderstorm
}

// PlaceContainment is one row returned by a places-containing-point query,
// shared by RelStore and every consumer of PlacesContaining.
type PlaceContainment struct {
	PlaceID  int64
	Name     string
	Type     PlaceType
	Province string
}

// RoutePlace is a single place observed along a computed route.
type RoutePlace struct {
	Name string
	Type PlaceType
	Lat  float64
	Lon  float64
}

// RoutePlacesEntry is the list of places observed along a (source, target) route.
type RoutePlacesEntry struct {
	SourcePlaceID int64
	TargetPlaceID int64
	Places        []RoutePlace
	TotalPlaces   int
	UpdatedAt     time.Time
}

// WeatherCellSummary is one annotated H3 cell in a RouteResult.
type WeatherCellSummary struct {
	H3Index string
	Lat     float64
	Lon     float64
	Weather WeatherPayload
}

// PlaceAlertSummary is one place-with-forecast entry in a RouteResult,
// ordered by position along the route.
type PlaceAlertSummary struct {
	Name        string
	Type        PlaceType
	ArrivalTime time.Time
	Weather     WeatherPayload
}

// RouteStats reports cache effectiveness for one PlanRoute call.
type RouteStats struct {
	CacheHit         bool
	NewAPICalls      int
	CellCacheHitRate float64
}

// RouteResult is PlanRoute's success output.
//
// Invariant: DurationHours is always the deterministic base duration
// (times 1.30 when traffic reporting was requested); weather annotations
// never change it.
type RouteResult struct {
	DistanceKm     float64
	DurationHours  float64
	Geometry       []Coordinate
	WeatherSummary string
	WeatherCells   []WeatherCellSummary
	PlacesOnRoute  []PlaceAlertSummary
	Stats          RouteStats
}

// Package graphbuilder grows the road graph on a GraphRouter cache miss,
// either by splitting off an existing hub's last mile or by injecting a
// fresh direct chain between two new access nodes.
package graphbuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nimbusgraph/nimbusgraph/internal/geoindex"
	"github.com/nimbusgraph/nimbusgraph/internal/graph"
	"github.com/nimbusgraph/nimbusgraph/internal/routerapi"
)

// MaxHubRangeKm bounds the split-point search radius around the destination.
const MaxHubRangeKm = 50

// SplitOverhead is the tolerance the split-point commit condition allows:
// existing_duration + T_last <= SplitOverhead * T_direct.
const SplitOverhead = 1.10

// SamplePeriodMeters is the target spacing between sampled polyline points.
const SamplePeriodMeters = 1000

// MapMatchThresholdMeters bounds node reuse distance during map-matching.
const MapMatchThresholdMeters = 50

// LinkMaxKm bounds the place-to-node linking distance.
const LinkMaxKm = 5

var speedTableKmh = map[string]float64{
	"motorway":    100,
	"trunk":       90,
	"primary":     80,
	"secondary":   60,
	"tertiary":    50,
	"residential": 30,
	"service":     20,
}

const defaultSpeedKmh = 50

// maxSpeedFor maps a road-class hint through the fixed speed table, falling
// back to the default when unrecognized or absent.
func maxSpeedFor(roadClass string) float64 {
	lower := strings.ToLower(roadClass)
	for class, speed := range speedTableKmh {
		if strings.Contains(lower, class) {
			return speed
		}
	}
	return defaultSpeedKmh
}

// HubFinder is RelStore's split-point candidate query.
type HubFinder interface {
	FindNearestHubNodes(ctx context.Context, coords graph.Coordinate, maxKm float64) ([]graph.HubNode, error)
}

// RouteFinder is GraphRouter's path lookup, used to check whether a
// hub is already reachable from the source place.
type RouteFinder interface {
	FindRoute(ctx context.Context, srcPlaceID, dstPlaceID int64) (*graph.Path, error)
}

// ExternalRouter is the external turn-by-turn routing provider.
type ExternalRouter interface {
	GetRoute(ctx context.Context, origin, destination graph.Coordinate) (*routerapi.RawRoute, error)
}

// NodeStore is the subset of RelStore used to grow the graph.
type NodeStore interface {
	HubFinder
	InsertNode(ctx context.Context, lat, lon float64, geohash string, nodeType graph.NodeType) (int64, error)
	InsertEdgeIfNew(ctx context.Context, src, dst int64, geometry []graph.Coordinate, distanceM, maxKmh, durationS float64, roadType string) error
	LinkNodeToPlace(ctx context.Context, nodeID, placeID int64) error
	NearestNodeWithin(ctx context.Context, lat, lon, thresholdM float64, candidateHashes []string) (int64, error)
}

// Builder grows the road graph on a GraphRouter cache miss.
type Builder struct {
	rel    NodeStore
	router RouteFinder
	ext    ExternalRouter
	logger zerolog.Logger
}

// New builds a Builder.
func New(rel NodeStore, router RouteFinder, ext ExternalRouter, logger zerolog.Logger) *Builder {
	return &Builder{rel: rel, router: router, ext: ext, logger: logger.With().Str("component", "graphbuilder").Logger()}
}

// HandleMiss grows the graph so the next identical (srcPlaceID, dstPlaceID)
// query becomes a GraphRouter hit. It first tries to split off an existing
// hub's last mile, then falls back to injecting the full direct route.
func (b *Builder) HandleMiss(ctx context.Context, srcPlaceID, dstPlaceID int64, srcCoords, dstCoords graph.Coordinate) (bool, error) {
	hubs, err := b.rel.FindNearestHubNodes(ctx, dstCoords, MaxHubRangeKm)
	if err != nil {
		return false, fmt.Errorf("graphbuilder: find nearest hub nodes: %w", err)
	}

	for _, hub := range hubs {
		existing, err := b.router.FindRoute(ctx, srcPlaceID, hub.PlaceID)
		if err != nil {
			b.logger.Warn().Err(err).Int64("hub_place", hub.PlaceID).Msg("graphbuilder: route to hub failed")
			continue
		}
		if existing == nil {
			continue
		}

		lastMile, err := b.ext.GetRoute(ctx, hub.NodeGeometry, dstCoords)
		if err != nil {
			b.logger.Warn().Err(err).Msg("graphbuilder: last-mile fetch failed")
			continue
		}
		direct, err := b.ext.GetRoute(ctx, srcCoords, dstCoords)
		if err != nil {
			b.logger.Warn().Err(err).Msg("graphbuilder: direct route fetch failed")
			continue
		}

		if existing.TotalDurationS+lastMile.DurationSeconds <= SplitOverhead*direct.DurationSeconds {
			anchor := hub.NodeID
			_, ok, err := b.injectRoute(ctx, lastMile, &anchor, nil, &dstPlaceID, hub.NodeGeometry, dstCoords)
			if err != nil {
				return false, fmt.Errorf("graphbuilder: split-point injection: %w", err)
			}
			if ok {
				b.logger.Info().Int64("hub_node", hub.NodeID).Int64("dst_place", dstPlaceID).Msg("graphbuilder: split-point commit")
				return true, nil
			}
		}
	}

	direct, err := b.ext.GetRoute(ctx, srcCoords, dstCoords)
	if err != nil {
		return false, fmt.Errorf("%w: graphbuilder: direct route fallback fetch: %v", graph.ErrUpstreamUnavailable, err)
	}
	_, ok, err := b.injectRoute(ctx, direct, nil, &srcPlaceID, &dstPlaceID, srcCoords, dstCoords)
	if err != nil {
		return false, fmt.Errorf("graphbuilder: fallback injection: %w", err)
	}
	return ok, nil
}

// injectRoute samples raw's polyline to roughly one point per kilometre,
// map-matches or creates a node per sample, links the endpoints to their
// places, and inserts edges between consecutive nodes. anchorNodeID, when
// set, forces the first node to an already-known node instead of
// map-matching or inserting one (the split-point case); srcPlaceID, when
// set, links the first node (map-matched or newly inserted) to that place
// instead (the fallback case). Success requires at least one edge created.
func (b *Builder) injectRoute(ctx context.Context, raw *routerapi.RawRoute, anchorNodeID *int64, srcPlaceID, dstPlaceID *int64, srcCoords, dstCoords graph.Coordinate) ([]int64, bool, error) {
	if len(raw.Coords) < 2 {
		return nil, false, nil
	}

	sampleIdx := sampleIndices(raw.Coords, SamplePeriodMeters)
	cumDistance := cumulativeDistances(raw.Coords)

	nodeIDs := make([]int64, 0, len(sampleIdx))
	for i, idx := range sampleIdx {
		point := raw.Coords[idx]

		if i == 0 && anchorNodeID != nil {
			nodeIDs = append(nodeIDs, *anchorNodeID)
			continue
		}

		nodeID, err := b.resolveNode(ctx, point)
		if err != nil {
			return nil, false, err
		}
		nodeIDs = append(nodeIDs, nodeID)

		if i == 0 && srcPlaceID != nil {
			if err := b.rel.LinkNodeToPlace(ctx, nodeID, *srcPlaceID); err != nil {
				return nil, false, fmt.Errorf("link source place: %w", err)
			}
		}
	}

	last := len(nodeIDs) - 1
	if dstPlaceID != nil {
		if err := b.rel.LinkNodeToPlace(ctx, nodeIDs[last], *dstPlaceID); err != nil {
			return nil, false, fmt.Errorf("link destination place: %w", err)
		}
	}

	edgesCreated := 0
	for i := 1; i < len(nodeIDs); i++ {
		a, bNode := nodeIDs[i-1], nodeIDs[i]
		if a == bNode {
			continue
		}
		pointA, pointB := raw.Coords[sampleIdx[i-1]], raw.Coords[sampleIdx[i]]
		distance := graph.HaversineMeters(pointA, pointB)
		roadClass := roadClassAt(raw, cumDistance[sampleIdx[i]])
		speed := maxSpeedFor(roadClass)
		duration := graph.BaseDuration(distance, speed)

		if err := b.rel.InsertEdgeIfNew(ctx, a, bNode, []graph.Coordinate{pointA, pointB}, distance, speed, duration, roadClass); err != nil {
			return nil, false, fmt.Errorf("insert edge %d->%d: %w", a, bNode, err)
		}
		edgesCreated++
	}

	return nodeIDs, edgesCreated > 0, nil
}

func (b *Builder) resolveNode(ctx context.Context, point graph.Coordinate) (int64, error) {
	candidates := geoindex.CandidateHashes(point.Lat, point.Lon, 7, true)
	if nodeID, err := b.rel.NearestNodeWithin(ctx, point.Lat, point.Lon, MapMatchThresholdMeters, candidates); err == nil {
		return nodeID, nil
	}

	geohash := geoindex.EncodeGeohash(point.Lat, point.Lon, 7)
	nodeID, err := b.rel.InsertNode(ctx, point.Lat, point.Lon, geohash, graph.NodeTypeWaypoint)
	if err != nil {
		return 0, fmt.Errorf("insert node at (%v,%v): %w", point.Lat, point.Lon, err)
	}
	return nodeID, nil
}

// LinkPlaceToNearestNode promotes the candidate node closest to placeCoords
// (within maxKm) into an access point of placeID. Candidates are not
// filtered by link state: when the closest one is already linked to a
// place, RelStore's LinkNodeToPlace keeps that link and placeID is not
// linked to any node.
func (b *Builder) LinkPlaceToNearestNode(ctx context.Context, placeID int64, placeCoords graph.Coordinate, candidateNodes []int64, candidateCoords map[int64]graph.Coordinate, maxKm float64) (bool, error) {
	var best int64
	bestDist := maxKm * 1000
	found := false
	for _, nodeID := range candidateNodes {
		coord, ok := candidateCoords[nodeID]
		if !ok {
			continue
		}
		d := graph.HaversineMeters(placeCoords, coord)
		if d <= bestDist {
			best, bestDist, found = nodeID, d, true
		}
	}
	if !found {
		return false, nil
	}
	if err := b.rel.LinkNodeToPlace(ctx, best, placeID); err != nil {
		return false, fmt.Errorf("graphbuilder: link place to nearest node: %w", err)
	}
	return true, nil
}

// sampleIndices returns indices into coords spaced roughly periodMeters
// apart, always including the first and last point.
func sampleIndices(coords []graph.Coordinate, periodMeters float64) []int {
	if len(coords) == 0 {
		return nil
	}
	indices := []int{0}
	accum := 0.0
	for i := 1; i < len(coords); i++ {
		accum += graph.HaversineMeters(coords[i-1], coords[i])
		if accum >= periodMeters || i == len(coords)-1 {
			indices = append(indices, i)
			accum = 0
		}
	}
	if len(indices) == 1 {
		indices = append(indices, len(coords)-1)
	}
	return indices
}

// cumulativeDistances returns, for each coords index, the great-circle
// distance accumulated from the first point.
func cumulativeDistances(coords []graph.Coordinate) []float64 {
	out := make([]float64, len(coords))
	for i := 1; i < len(coords); i++ {
		out[i] = out[i-1] + graph.HaversineMeters(coords[i-1], coords[i])
	}
	return out
}

// roadClassAt finds the road-class hint of the step whose cumulative
// distance range contains distanceAlong.
func roadClassAt(raw *routerapi.RawRoute, distanceAlong float64) string {
	cum := 0.0
	for _, step := range raw.Steps {
		cum += step.DistanceMeters
		if distanceAlong <= cum {
			return step.RoadClass
		}
	}
	if len(raw.Steps) > 0 {
		return raw.Steps[len(raw.Steps)-1].RoadClass
	}
	return ""
}

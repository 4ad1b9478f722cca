// Package geonodecache is a hot-loaded geospatial index of graph nodes used
// to answer nearest-node queries without touching RelStore on every call.
package geonodecache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

const geoSetKey = "geo:nodes"

// GeoIndex is the subset of KVCache's geospatial commands this cache needs.
type GeoIndex interface {
	GeoAdd(ctx context.Context, key string, lon, lat float64, member string) error
	GeoRadiuser
}

// GeoRadiuser separates the read path so test fakes can implement only what
// they exercise.
type GeoRadiuser interface {
	GeoRadius(ctx context.Context, key string, lon, lat, radiusKm float64) ([]graph.GeoMember, error)
}

// NodeLister loads every persisted node at startup.
type NodeLister interface {
	AllNodeCoordinates(ctx context.Context) ([]graph.NodeCoordinate, error)
}

// NearestNodeFinder is RelStore's cold-path fallback: a pure-distance KNN
// query, used when the KVCache geospatial index is unavailable.
type NearestNodeFinder interface {
	NearestNodesKNN(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]graph.NearestNode, error)
}

// Cache is the nearest-node index held in the KVCache geo set, warmed from
// RelStore at startup.
type Cache struct {
	geo    GeoIndex
	rel    NearestNodeFinder
	logger zerolog.Logger
	loaded int
}

// New builds a Cache. Call LoadFromRelStore once at startup, after both the
// KVCache and RelStore pools are up and before any request is served.
func New(geo GeoIndex, rel NearestNodeFinder, logger zerolog.Logger) *Cache {
	return &Cache{geo: geo, rel: rel, logger: logger.With().Str("component", "geonodecache").Logger()}
}

// LoadFromRelStore loads every node into the geospatial set with one GeoAdd
// call per node; the writes are neither pipelined nor batched.
func (c *Cache) LoadFromRelStore(ctx context.Context, lister NodeLister) error {
	nodes, err := lister.AllNodeCoordinates(ctx)
	if err != nil {
		return fmt.Errorf("geonodecache: load nodes: %w", err)
	}
	for _, n := range nodes {
		if err := c.geo.GeoAdd(ctx, geoSetKey, n.Coord.Lon, n.Coord.Lat, strconv.FormatInt(n.NodeID, 10)); err != nil {
			return fmt.Errorf("geonodecache: geoadd node %d: %w", n.NodeID, err)
		}
	}
	c.loaded = len(nodes)
	c.logger.Info().Int("count", c.loaded).Msg("geonodecache: bulk load complete")
	return nil
}

// Loaded returns the number of nodes loaded at startup.
func (c *Cache) Loaded() int {
	return c.loaded
}

// NearbyResult is one hit from Nearby.
type NearbyResult struct {
	NodeID     int64
	DistanceKm float64
}

// Nearby finds up to limit nodes within radiusKm of (lat, lon), nearest
// first. Hot path hits the KVCache geospatial set; on error it falls back
// to RelStore's distance query.
func (c *Cache) Nearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]NearbyResult, error) {
	members, err := c.geo.GeoRadius(ctx, geoSetKey, lon, lat, radiusKm)
	if err != nil {
		c.logger.Warn().Err(err).Msg("geonodecache: geo cache miss, falling back to relstore")
		return c.nearbyColdPath(ctx, lat, lon, radiusKm, limit)
	}

	if limit > 0 && len(members) > limit {
		members = members[:limit]
	}
	out := make([]NearbyResult, 0, len(members))
	for _, m := range members {
		id, convErr := strconv.ParseInt(m.Name, 10, 64)
		if convErr != nil {
			continue
		}
		out = append(out, NearbyResult{NodeID: id, DistanceKm: m.DistKm})
	}
	return out, nil
}

func (c *Cache) nearbyColdPath(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]NearbyResult, error) {
	hits, err := c.rel.NearestNodesKNN(ctx, lat, lon, radiusKm, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: geonodecache cold path: %v", graph.ErrCacheDegraded, err)
	}
	out := make([]NearbyResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, NearbyResult{NodeID: h.NodeID, DistanceKm: h.DistanceKm})
	}
	return out, nil
}

// Add registers a freshly created node in the hot index.
func (c *Cache) Add(ctx context.Context, nodeID int64, lat, lon float64) error {
	if err := c.geo.GeoAdd(ctx, geoSetKey, lon, lat, strconv.FormatInt(nodeID, 10)); err != nil {
		return fmt.Errorf("geonodecache: add node %d: %w", nodeID, err)
	}
	return nil
}

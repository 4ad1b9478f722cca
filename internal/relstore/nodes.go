package relstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

// AccessNodesOf returns the ids of every node linked to placeID as an
// access point.
func (s *Store) AccessNodesOf(ctx context.Context, placeID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT node_id FROM nodes WHERE linked_place_id = $1 AND node_type = 'access_point'
	`, placeID)
	if err != nil {
		return nil, fmt.Errorf("relstore: access nodes of %d: %w", placeID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("relstore: scan access node: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NearestNodeWithin finds the closest node to (lat, lon) within thresholdM
// meters, prefiltered by candidateHashes (geohash B-tree equality) before
// the spatial distance ordering: O(log N + k) instead of an unfiltered
// O(N) scan.
func (s *Store) NearestNodeWithin(ctx context.Context, lat, lon, thresholdM float64, candidateHashes []string) (int64, error) {
	if len(candidateHashes) == 0 {
		return 0, ErrNodeNotFound
	}
	query := `
		SELECT node_id
		FROM nodes
		WHERE geohash = ANY($1)
		  AND ST_DWithin(geometry, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4)
		ORDER BY geometry <-> ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography
		LIMIT 1
	`
	var nodeID int64
	err := s.pool.QueryRow(ctx, query, candidateHashes, lon, lat, thresholdM).Scan(&nodeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNodeNotFound
		}
		return 0, fmt.Errorf("relstore: nearest node within: %w", err)
	}
	return nodeID, nil
}

// AllNodeCoordinates returns every persisted node's (id, lat, lon), used by
// GeoNodeCache's startup bulk load.
func (s *Store) AllNodeCoordinates(ctx context.Context) ([]graph.NodeCoordinate, error) {
	rows, err := s.pool.Query(ctx, `SELECT node_id, ST_Y(geometry::geometry), ST_X(geometry::geometry) FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("relstore: all node coordinates: %w", err)
	}
	defer rows.Close()

	var out []graph.NodeCoordinate
	for rows.Next() {
		var c graph.NodeCoordinate
		if err := rows.Scan(&c.NodeID, &c.Coord.Lat, &c.Coord.Lon); err != nil {
			return nil, fmt.Errorf("relstore: scan node coordinate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// NearestNodesKNN finds up to limit nodes within radiusKm of (lat, lon)
// ordered by distance, without a geohash prefilter. Used as GeoNodeCache's
// cold path when the KVCache geospatial index is unavailable.
func (s *Store) NearestNodesKNN(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]graph.NearestNode, error) {
	query := `
		SELECT node_id, ST_Distance(geometry, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) / 1000.0 AS dist_km
		FROM nodes
		WHERE ST_DWithin(geometry, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY geometry <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
		LIMIT $4
	`
	rows, err := s.pool.Query(ctx, query, lon, lat, radiusKm*1000, limit)
	if err != nil {
		return nil, fmt.Errorf("relstore: nearest nodes knn: %w", err)
	}
	defer rows.Close()

	var out []graph.NearestNode
	for rows.Next() {
		var r graph.NearestNode
		if err := rows.Scan(&r.NodeID, &r.DistanceKm); err != nil {
			return nil, fmt.Errorf("relstore: scan knn result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertNode creates a new graph node.
func (s *Store) InsertNode(ctx context.Context, lat, lon float64, geohash string, nodeType graph.NodeType) (int64, error) {
	query := `
		INSERT INTO nodes (geometry, geohash, node_type)
		VALUES (ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3, $4)
		RETURNING node_id
	`
	var nodeID int64
	err := s.pool.QueryRow(ctx, query, lon, lat, geohash, string(nodeType)).Scan(&nodeID)
	if err != nil {
		return 0, fmt.Errorf("relstore: insert node: %w", err)
	}
	return nodeID, nil
}

// LinkNodeToPlace promotes nodeID to an access point of placeID. Promotion
// only ever moves linked_place_id from null to a value, never back.
func (s *Store) LinkNodeToPlace(ctx context.Context, nodeID, placeID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE nodes SET linked_place_id = $2, node_type = 'access_point'
		WHERE node_id = $1 AND linked_place_id IS NULL
	`, nodeID, placeID)
	if err != nil {
		return fmt.Errorf("relstore: link node %d to place %d: %w", nodeID, placeID, err)
	}
	return nil
}

// FindNearestHubNodes returns access nodes of city/town places within
// maxKm of coords, nearest first, for GraphBuilder's split-point attempt.
func (s *Store) FindNearestHubNodes(ctx context.Context, coords graph.Coordinate, maxKm float64) ([]graph.HubNode, error) {
	query := `
		SELECT n.node_id, n.linked_place_id,
		       ST_Distance(n.geometry, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) / 1000.0 AS dist_km,
		       ST_Y(n.geometry::geometry), ST_X(n.geometry::geometry)
		FROM nodes n
		JOIN places p ON p.place_id = n.linked_place_id
		WHERE n.node_type = 'access_point'
		  AND p.place_type IN ('city', 'town')
		  AND ST_DWithin(n.geometry, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY dist_km ASC
	`
	rows, err := s.pool.Query(ctx, query, coords.Lon, coords.Lat, maxKm*1000)
	if err != nil {
		return nil, fmt.Errorf("relstore: find nearest hub nodes: %w", err)
	}
	defer rows.Close()

	var out []graph.HubNode
	for rows.Next() {
		var h graph.HubNode
		if err := rows.Scan(&h.NodeID, &h.PlaceID, &h.DistanceKm, &h.NodeGeometry.Lat, &h.NodeGeometry.Lon); err != nil {
			return nil, fmt.Errorf("relstore: scan hub node: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// NodeGeometries returns the (lat, lon) of each node in nodeIDs, preserving
// input order.
func (s *Store) NodeGeometries(ctx context.Context, nodeIDs []int64) ([]graph.Coordinate, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT node_id, ST_Y(geometry::geometry), ST_X(geometry::geometry)
		FROM nodes
		WHERE node_id = ANY($1)
	`, nodeIDs)
	if err != nil {
		return nil, fmt.Errorf("relstore: node geometries: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]graph.Coordinate, len(nodeIDs))
	for rows.Next() {
		var id int64
		var c graph.Coordinate
		if err := rows.Scan(&id, &c.Lat, &c.Lon); err != nil {
			return nil, fmt.Errorf("relstore: scan node geometry: %w", err)
		}
		byID[id] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("relstore: node geometries rows: %w", err)
	}

	out := make([]graph.Coordinate, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		c, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: node %d", ErrNodeNotFound, id)
		}
		out = append(out, c)
	}
	return out, nil
}

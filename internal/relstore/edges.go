package relstore

import (
	"context"
	"fmt"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

// InsertEdgeIfNew creates a directed edge between src and dst, a no-op when
// the pair already exists. Edges are never updated once inserted.
func (s *Store) InsertEdgeIfNew(ctx context.Context, src, dst int64, geometry []graph.Coordinate, distanceM, maxKmh, durationS float64, roadType string) error {
	lineWKT := lineStringWKT(geometry)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO edges (source_node, target_node, geometry, distance_meters, max_speed_kmh, base_duration_seconds, road_type)
		VALUES ($1, $2, ST_SetSRID(ST_GeomFromText($3), 4326)::geography, $4, $5, $6, $7)
		ON CONFLICT (source_node, target_node) DO NOTHING
	`, src, dst, lineWKT, distanceM, maxKmh, durationS, roadType)
	if err != nil {
		return fmt.Errorf("relstore: insert edge %d->%d: %w", src, dst, err)
	}
	return nil
}

func lineStringWKT(points []graph.Coordinate) string {
	if len(points) < 2 {
		return ""
	}
	return "LINESTRING" + wktRingOf(points)
}

func wktRingOf(points []graph.Coordinate) string {
	s := "("
	for i, p := range points {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%v %v", p.Lon, p.Lat)
	}
	return s + ")"
}

// ShortestPath computes the least base_duration_seconds path between two
// nodes using the pgRouting Dijkstra extension over the edges table.
func (s *Store) ShortestPath(ctx context.Context, srcNode, dstNode int64) ([]graph.PathStep, error) {
	query := `
		SELECT d.seq, d.node, d.edge, d.cost, d.agg_cost,
		       e.distance_meters, e.base_duration_seconds,
		       ST_Y(n.geometry::geometry), ST_X(n.geometry::geometry)
		FROM pgr_dijkstra(
			'SELECT edge_id AS id, source_node AS source, target_node AS target, base_duration_seconds AS cost FROM edges',
			$1, $2, directed := true
		) d
		LEFT JOIN edges e ON e.edge_id = d.edge
		JOIN nodes n ON n.node_id = d.node
		ORDER BY d.seq
	`
	rows, err := s.pool.Query(ctx, query, srcNode, dstNode)
	if err != nil {
		return nil, fmt.Errorf("relstore: shortest path %d->%d: %w", srcNode, dstNode, err)
	}
	defer rows.Close()

	var steps []graph.PathStep
	for rows.Next() {
		var step graph.PathStep
		var distance, duration *float64
		if err := rows.Scan(&step.Seq, &step.NodeID, &step.EdgeID, &step.Cost, &step.AggCost,
			&distance, &duration, &step.Geometry.Lat, &step.Geometry.Lon); err != nil {
			return nil, fmt.Errorf("relstore: scan path step: %w", err)
		}
		if distance != nil {
			step.DistanceMeters = *distance
		}
		if duration != nil {
			step.DurationS = *duration
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("relstore: shortest path rows: %w", err)
	}
	if len(steps) == 0 {
		return nil, nil
	}
	return steps, nil
}

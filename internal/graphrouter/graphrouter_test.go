package graphrouter

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

type fakeDurable struct {
	accessNodes map[int64][]int64
	paths       map[[2]int64][]graph.PathStep
	geometries  map[int64]graph.Coordinate
}

func (f *fakeDurable) AccessNodesOf(_ context.Context, placeID int64) ([]int64, error) {
	return f.accessNodes[placeID], nil
}

func (f *fakeDurable) ShortestPath(_ context.Context, srcNode, dstNode int64) ([]graph.PathStep, error) {
	return f.paths[[2]int64{srcNode, dstNode}], nil
}

func (f *fakeDurable) NodeGeometries(_ context.Context, nodeIDs []int64) ([]graph.Coordinate, error) {
	out := make([]graph.Coordinate, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		out = append(out, f.geometries[id])
	}
	return out, nil
}

func TestFindRouteReturnsNilWhenNoAccessNodes(t *testing.T) {
	rel := &fakeDurable{accessNodes: map[int64][]int64{1: {10}}}
	r := New(rel, zerolog.Nop())

	path, err := r.FindRoute(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if path != nil {
		t.Errorf("expected nil path, got %+v", path)
	}
}

func TestFindRoutePicksMinimumCost(t *testing.T) {
	rel := &fakeDurable{
		accessNodes: map[int64][]int64{1: {10, 11}, 2: {20}},
		paths: map[[2]int64][]graph.PathStep{
			{10, 20}: {{Seq: 1, NodeID: 10, EdgeID: 1, AggCost: 500, DistanceMeters: 1000, DurationS: 500}},
			{11, 20}: {{Seq: 1, NodeID: 11, EdgeID: 2, AggCost: 300, DistanceMeters: 700, DurationS: 300}},
		},
		geometries: map[int64]graph.Coordinate{11: {Lat: 1, Lon: 1}},
	}
	r := New(rel, zerolog.Nop())

	path, err := r.FindRoute(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if path == nil {
		t.Fatalf("expected a path")
	}
	if len(path.NodeIDs) != 1 || path.NodeIDs[0] != 11 {
		t.Errorf("expected cheaper path via node 11, got %+v", path.NodeIDs)
	}
	if path.TotalDurationS != 300 {
		t.Errorf("TotalDurationS = %v, want 300", path.TotalDurationS)
	}
}

func TestFindRouteTiesBreakByDistanceThenNodeID(t *testing.T) {
	rel := &fakeDurable{
		accessNodes: map[int64][]int64{1: {10, 11}, 2: {20}},
		paths: map[[2]int64][]graph.PathStep{
			{10, 20}: {{Seq: 1, NodeID: 10, EdgeID: 1, AggCost: 500, DistanceMeters: 900, DurationS: 500}},
			{11, 20}: {{Seq: 1, NodeID: 11, EdgeID: 2, AggCost: 500, DistanceMeters: 800, DurationS: 500}},
		},
	}
	r := New(rel, zerolog.Nop())

	path, err := r.FindRoute(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if path.NodeIDs[0] != 11 {
		t.Errorf("expected tie broken by shorter distance (node 11), got %+v", path.NodeIDs)
	}
}

func TestFindRouteAllPairsFailReturnsNil(t *testing.T) {
	rel := &fakeDurable{accessNodes: map[int64][]int64{1: {10}, 2: {20}}}
	r := New(rel, zerolog.Nop())

	path, err := r.FindRoute(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if path != nil {
		t.Errorf("expected nil path when every pair yields no route")
	}
}

package geoindex

import (
	"strings"
	"testing"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

func TestWKTPolygonClosesRing(t *testing.T) {
	square := []graph.Coordinate{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 1},
		{Lat: 1, Lon: 1},
		{Lat: 1, Lon: 0},
	}
	wkt := WKTPolygon(square)
	if !strings.HasPrefix(wkt, "POLYGON((") || !strings.HasSuffix(wkt, "))") {
		t.Fatalf("unexpected WKT shape: %q", wkt)
	}
	// first and last coordinate pairs must match once closed
	inner := strings.TrimSuffix(strings.TrimPrefix(wkt, "POLYGON(("), "))")
	points := strings.Split(inner, ", ")
	if len(points) != len(square)+1 {
		t.Fatalf("expected ring to be closed with %d points, got %d", len(square)+1, len(points))
	}
	if points[0] != points[len(points)-1] {
		t.Errorf("ring not closed: first %q != last %q", points[0], points[len(points)-1])
	}
}

func TestWKTPolygonTooFewPoints(t *testing.T) {
	if got := WKTPolygon([]graph.Coordinate{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}); got != "" {
		t.Errorf("fewer than 3 points should return empty string, got %q", got)
	}
}

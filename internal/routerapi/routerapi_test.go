package routerapi

import (
	"testing"

	"github.com/nimbusgraph/nimbusgraph/pkg/polyline"
)

func TestToRawRoute(t *testing.T) {
	coords := []polyline.Coordinate{{Lat: 52.37, Lon: 4.89}, {Lat: 52.08, Lon: 5.12}}
	encoded := polyline.Encode(coords)

	raw := osrmRoute{
		Geometry: encoded,
		Distance: 1500,
		Duration: 120,
		Legs: []osrmLeg{
			{Steps: []osrmStep{
				{Distance: 1000, Duration: 80, Name: "primary"},
				{Distance: 500, Duration: 40, Name: "residential"},
			}},
		},
	}

	got := toRawRoute(&raw)
	if len(got.Coords) != 2 {
		t.Fatalf("expected 2 coords, got %d", len(got.Coords))
	}
	if got.DistanceMeters != 1500 || got.DurationSeconds != 120 {
		t.Errorf("unexpected totals: %+v", got)
	}
	if len(got.Steps) != 2 || got.Steps[0].RoadClass != "primary" {
		t.Errorf("unexpected steps: %+v", got.Steps)
	}
}

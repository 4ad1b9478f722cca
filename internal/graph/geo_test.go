package graph

import (
	"math"
	"testing"
)

func TestHaversineMeters(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Coordinate
		expected float64
		epsilon  float64
	}{
		{
			name:     "same point",
			a:        Coordinate{Lat: 52.37, Lon: 4.89},
			b:        Coordinate{Lat: 52.37, Lon: 4.89},
			expected: 0,
			epsilon:  1e-6,
		},
		{
			name:     "amsterdam to rotterdam",
			a:        Coordinate{Lat: 52.3676, Lon: 4.9041},
			b:        Coordinate{Lat: 51.9225, Lon: 4.47917},
			expected: 57300,
			epsilon:  2000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineMeters(tt.a, tt.b)
			if math.Abs(got-tt.expected) > tt.epsilon {
				t.Errorf("HaversineMeters() = %v, want %v ± %v", got, tt.expected, tt.epsilon)
			}
		})
	}
}

func TestBaseDuration(t *testing.T) {
	got := BaseDuration(1000, 100) // 1km at 100km/h
	want := 36.0                   // seconds
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("BaseDuration() = %v, want %v", got, want)
	}

	if BaseDuration(1000, 0) != 0 {
		t.Errorf("BaseDuration with zero speed should return 0")
	}
}

func TestCentroid(t *testing.T) {
	square := []Coordinate{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 2},
		{Lat: 2, Lon: 2},
		{Lat: 2, Lon: 0},
	}
	c := Centroid(square)
	if c.Lat != 1 || c.Lon != 1 {
		t.Errorf("Centroid() = %+v, want {1 1}", c)
	}
}

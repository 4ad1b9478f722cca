package geoindex

import (
	"math"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		lat, lon  float64
		precision int
	}{
		{"amsterdam", 52.3676, 4.9041, 7},
		{"places precision", 52.3676, 4.9041, 6},
		{"cache proximity precision", 52.3676, 4.9041, 5},
		{"equator", 0, 0, 7},
		{"south pole edge", -89.9, 179.9, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := EncodeGeohash(tt.lat, tt.lon, tt.precision)
			if len(hash) != tt.precision {
				t.Fatalf("EncodeGeohash() length = %d, want %d", len(hash), tt.precision)
			}

			lat, lon := DecodeGeohash(hash)
			if math.Abs(lat-tt.lat) > 0.1 || math.Abs(lon-tt.lon) > 0.1 {
				t.Errorf("round trip drifted: got (%v,%v), want ~(%v,%v)", lat, lon, tt.lat, tt.lon)
			}

			hash2 := EncodeGeohash(lat, lon, tt.precision)
			if hash2 != hash {
				t.Errorf("re-encode not idempotent: %q != %q", hash2, hash)
			}
		})
	}
}

func TestEncodeGeohashMalformedInput(t *testing.T) {
	if got := EncodeGeohash(91, 0, 7); got != "" {
		t.Errorf("lat out of range should return empty string, got %q", got)
	}
	if got := EncodeGeohash(0, 181, 7); got != "" {
		t.Errorf("lon out of range should return empty string, got %q", got)
	}
	if got := EncodeGeohash(0, 0, 0); got != "" {
		t.Errorf("precision <= 0 should return empty string, got %q", got)
	}
}

func TestDecodeGeohashMalformedInput(t *testing.T) {
	lat, lon := DecodeGeohash("")
	if lat != 0 || lon != 0 {
		t.Errorf("empty hash should decode to (0,0), got (%v,%v)", lat, lon)
	}
	lat, lon = DecodeGeohash("!!!")
	if lat != 0 || lon != 0 {
		t.Errorf("invalid hash should decode to (0,0), got (%v,%v)", lat, lon)
	}
}

func TestNeighborGeohashesCountAndDistinct(t *testing.T) {
	hash := EncodeGeohash(52.3676, 4.9041, 7)
	neighbors := NeighborGeohashes(hash)
	if len(neighbors) == 0 {
		t.Fatal("expected at least one neighbor")
	}
	if len(neighbors) > 8 {
		t.Errorf("expected at most 8 neighbors, got %d", len(neighbors))
	}
	seen := map[string]bool{hash: true}
	for _, n := range neighbors {
		if seen[n] {
			t.Errorf("duplicate neighbor %q", n)
		}
		seen[n] = true
	}
}

func TestCandidateHashesBounds(t *testing.T) {
	hashes := CandidateHashes(52.3676, 4.9041, 6, true)
	if len(hashes) < 1 || len(hashes) > 9 {
		t.Fatalf("CandidateHashes() len = %d, want 1..9", len(hashes))
	}
	center := EncodeGeohash(52.3676, 4.9041, 6)
	if hashes[0] != center {
		t.Errorf("CandidateHashes()[0] = %q, want center %q", hashes[0], center)
	}

	single := CandidateHashes(52.3676, 4.9041, 6, false)
	if len(single) != 1 {
		t.Errorf("CandidateHashes(withNeighbors=false) len = %d, want 1", len(single))
	}
}

func TestCandidateHashesMalformedInput(t *testing.T) {
	if got := CandidateHashes(200, 0, 6, true); got != nil {
		t.Errorf("malformed input should return nil, got %v", got)
	}
}

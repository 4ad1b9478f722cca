package graph

import "math"

const earthRadiusMeters = 6371000.0

// HaversineMeters computes the great-circle distance between two coordinates
// in meters.
func HaversineMeters(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// BoundingBoxContains reports whether point is within the axis-aligned
// bounding box of the given polygon vertices. Used for the Place.Boundary
// centroid invariant check.
func BoundingBoxContains(polygon []Coordinate, point Coordinate) bool {
	if len(polygon) == 0 {
		return false
	}
	minLat, maxLat := polygon[0].Lat, polygon[0].Lat
	minLon, maxLon := polygon[0].Lon, polygon[0].Lon
	for _, p := range polygon[1:] {
		minLat = math.Min(minLat, p.Lat)
		maxLat = math.Max(maxLat, p.Lat)
		minLon = math.Min(minLon, p.Lon)
		maxLon = math.Max(maxLon, p.Lon)
	}
	return point.Lat >= minLat && point.Lat <= maxLat && point.Lon >= minLon && point.Lon <= maxLon
}

// Centroid computes the arithmetic mean of polygon vertices.
func Centroid(polygon []Coordinate) Coordinate {
	if len(polygon) == 0 {
		return Coordinate{}
	}
	var sumLat, sumLon float64
	for _, p := range polygon {
		sumLat += p.Lat
		sumLon += p.Lon
	}
	n := float64(len(polygon))
	return Coordinate{Lat: sumLat / n, Lon: sumLon / n}
}

package geoindex

import (
	"strconv"
	"strings"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

// WKTPolygon renders a closed ring of coordinates as a WKT POLYGON literal,
// suitable for a PostGIS ST_GeomFromText parameter. Closes the ring if the
// caller did not repeat the first point. Returns an empty string for fewer
// than 3 distinct points.
func WKTPolygon(points []graph.Coordinate) string {
	if len(points) < 3 {
		return ""
	}

	ring := points
	first, last := points[0], points[len(points)-1]
	if first.Lat != last.Lat || first.Lon != last.Lon {
		ring = append(append([]graph.Coordinate{}, points...), first)
	}

	var b strings.Builder
	b.WriteString("POLYGON((")
	for i, p := range ring {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(p.Lon, 'f', -1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(p.Lat, 'f', -1, 64))
	}
	b.WriteString("))")
	return b.String()
}

package geoindex

import (
	"github.com/uber/h3-go/v4"
)

// H3Cell returns the H3 cell index string containing (lat, lon) at the given
// resolution. Malformed inputs return an empty string.
func H3Cell(lat, lon float64, resolution int) string {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 || resolution < 0 || resolution > 15 {
		return ""
	}
	cell := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, resolution)
	return cell.String()
}

// H3Neighbors returns the cell indexes within the given grid ring of cell,
// including cell itself. Returns nil for a malformed cell string.
func H3Neighbors(cell string, ring int) []string {
	if cell == "" || ring < 0 {
		return nil
	}
	var c h3.Cell
	if err := c.UnmarshalText([]byte(cell)); err != nil || !c.IsValid() {
		return nil
	}
	cells := h3.GridDisk(c, ring)
	out := make([]string, 0, len(cells))
	for _, n := range cells {
		out = append(out, n.String())
	}
	return out
}

// H3Parent returns the ancestor cell of cell at the coarser resolution, or
// an empty string if cell is malformed or resolution is not coarser.
func H3Parent(cell string, resolution int) string {
	if cell == "" {
		return ""
	}
	var c h3.Cell
	if err := c.UnmarshalText([]byte(cell)); err != nil || !c.IsValid() {
		return ""
	}
	parent, err := c.Parent(resolution)
	if err != nil {
		return ""
	}
	return parent.String()
}

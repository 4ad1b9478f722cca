// Package tzindex resolves a coordinate to the timezone offset that governs
// its local-hour cache boundaries. It is an injected, pure-function
// dependency (spec design note: "tz_of(lat, lon) -> tz_name"); no library in
// the reference corpus ships a coordinate-to-timezone dataset, so this is a
// deliberate, documented standard-library-only leaf (see DESIGN.md).
package tzindex

import "time"

// Resolver maps a coordinate to the *time.Location governing its local wall
// clock. Implementations must be pure and O(1).
type Resolver interface {
	LocationOf(lat, lon float64) *time.Location
}

// LongitudeApproximation is a Resolver that buckets the globe into 15°
// longitude bands, one per UTC hour offset. It does not account for
// political timezone boundaries or daylight saving time, but it satisfies
// the contract's requirement of a constant-time, deterministic function and
// is sufficient for cache TTL alignment (a coarse hour bucket boundary, not
// a legal wall-clock display).
type LongitudeApproximation struct{}

// LocationOf returns a fixed-offset *time.Location for lon's 15° band.
func (LongitudeApproximation) LocationOf(_, lon float64) *time.Location {
	offsetHours := int((lon + 7.5) / 15)
	if lon < 0 {
		offsetHours = int((lon - 7.5) / 15)
	}
	if offsetHours > 12 {
		offsetHours = 12
	}
	if offsetHours < -12 {
		offsetHours = -12
	}
	name := "UTC"
	if offsetHours != 0 {
		name = "UTC offset"
	}
	return time.FixedZone(name, offsetHours*3600)
}

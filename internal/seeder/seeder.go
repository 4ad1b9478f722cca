// Package seeder resolves a place name to a place id, fetching its
// boundary from an external OSM-compatible source and inserting it into
// RelStore on first mention.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nimbusgraph/nimbusgraph/internal/boundaryapi"
	"github.com/nimbusgraph/nimbusgraph/internal/geoindex"
	"github.com/nimbusgraph/nimbusgraph/internal/graph"
	"github.com/nimbusgraph/nimbusgraph/internal/normalizer"
	"github.com/nimbusgraph/nimbusgraph/internal/relstore"
)

// DefaultAdminLevel is the Overpass administrative level queried when the
// caller does not specify one.
const DefaultAdminLevel = 8

// PlaceStore is the subset of RelStore used by Seeder.
type PlaceStore interface {
	FindPlace(ctx context.Context, normalizedName string, placeType graph.PlaceType, country string) (*graph.Place, error)
	UpsertPlace(ctx context.Context, name string, placeType graph.PlaceType, country, province string, center graph.Coordinate, boundary []graph.Coordinate, geohash string, metadata map[string]string) (int64, error)
}

// BoundaryProvider is the external boundary lookup.
type BoundaryProvider interface {
	FindBoundary(ctx context.Context, name, country string, adminLevel int) (*boundaryapi.Boundary, error)
}

type inflight struct {
	done    chan struct{}
	placeID int64
	err     error
}

// Seeder resolves place names on demand, seeding RelStore from the boundary provider.
type Seeder struct {
	rel      PlaceStore
	boundary BoundaryProvider
	logger   zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]*inflight
}

// New builds a Seeder.
func New(rel PlaceStore, boundary BoundaryProvider, logger zerolog.Logger) *Seeder {
	return &Seeder{
		rel:      rel,
		boundary: boundary,
		logger:   logger.With().Str("component", "seeder").Logger(),
		inFlight: make(map[string]*inflight),
	}
}

func key(name, country string) string {
	return normalizer.Normalize(name) + "|" + country
}

// GetOrSeedPlace resolves name to a place id: fast path via RelStore, else
// a guarded fetch-and-insert from the external boundary provider. Callers
// racing on the same (name, country) converge on a single fetch; all but
// the first await its result. Returns (0, nil) when the place could not be
// resolved at all (timeout, parse failure, or no matching boundary).
func (s *Seeder) GetOrSeedPlace(ctx context.Context, name, country string, adminLevel int) (int64, error) {
	if adminLevel <= 0 {
		adminLevel = DefaultAdminLevel
	}
	normalized := normalizer.Normalize(name)

	if place, err := s.rel.FindPlace(ctx, normalized, "", country); err == nil {
		return place.ID, nil
	} else if !errors.Is(err, relstore.ErrPlaceNotFound) {
		s.logger.Warn().Err(err).Str("name", normalized).Msg("seeder: find_place lookup failed, attempting seed")
	}

	k := key(name, country)

	s.mu.Lock()
	if existing, ok := s.inFlight[k]; ok {
		s.mu.Unlock()
		select {
		case <-existing.done:
			return existing.placeID, existing.err
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	entry := &inflight{done: make(chan struct{})}
	s.inFlight[k] = entry
	s.mu.Unlock()

	placeID, err := s.seed(ctx, name, country, adminLevel)

	entry.placeID, entry.err = placeID, err
	close(entry.done)

	s.mu.Lock()
	delete(s.inFlight, k)
	s.mu.Unlock()

	return placeID, err
}

func (s *Seeder) seed(ctx context.Context, name, country string, adminLevel int) (int64, error) {
	boundary, err := s.boundary.FindBoundary(ctx, name, country, adminLevel)
	if err != nil {
		s.logger.Warn().Err(err).Str("name", name).Msg("seeder: boundary lookup failed")
		return 0, nil
	}
	if len(boundary.Polygon) < 3 {
		s.logger.Warn().Str("name", name).Msg("seeder: boundary has no usable polygon")
		return 0, nil
	}

	center := graph.Centroid(boundary.Polygon)
	gh := geoindex.EncodeGeohash(center.Lat, center.Lon, 6)
	normalized := normalizer.Normalize(name)

	placeID, err := s.rel.UpsertPlace(ctx, normalized, graph.PlaceTypeCity, country, "", center, boundary.Polygon, gh,
		map[string]string{"admin_level": fmt.Sprintf("%d", adminLevel)})
	if err != nil {
		return 0, fmt.Errorf("seeder: upsert place: %w", err)
	}
	return placeID, nil
}

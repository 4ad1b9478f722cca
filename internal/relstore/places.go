package relstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nimbusgraph/nimbusgraph/internal/geoindex"
	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

// FindPlace looks up a place by its normalized name and, when given,
// place type and country. Returns ErrPlaceNotFound on a miss.
func (s *Store) FindPlace(ctx context.Context, normalizedName string, placeType graph.PlaceType, country string) (*graph.Place, error) {
	query := `
		SELECT place_id, name, place_type, country, province, ST_Y(center_geom::geometry), ST_X(center_geom::geometry), geohash, metadata
		FROM places
		WHERE name = $1
		  AND ($2 = '' OR place_type = $2)
		  AND ($3 = '' OR country = $3)
		LIMIT 1
	`
	row := s.pool.QueryRow(ctx, query, normalizedName, string(placeType), country)
	return scanPlace(row)
}

func scanPlace(row pgx.Row) (*graph.Place, error) {
	var p graph.Place
	var placeType string
	var metadataJSON []byte
	err := row.Scan(&p.ID, &p.Name, &placeType, &p.Country, &p.Province, &p.Center.Lat, &p.Center.Lon, &p.Geohash, &metadataJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlaceNotFound
		}
		return nil, fmt.Errorf("relstore: scan place: %w", err)
	}
	p.Type = graph.PlaceType(placeType)
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &p.Metadata); err != nil {
			return nil, fmt.Errorf("relstore: unmarshal place metadata: %w", err)
		}
	}
	return &p, nil
}

// UpsertPlace inserts or updates a place keyed on (name, place_type,
// province) and returns its place_id.
func (s *Store) UpsertPlace(ctx context.Context, name string, placeType graph.PlaceType, country, province string, center graph.Coordinate, boundary []graph.Coordinate, geohash string, metadata map[string]string) (int64, error) {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return 0, fmt.Errorf("relstore: marshal place metadata: %w", err)
	}

	var boundaryWKT any
	if len(boundary) >= 3 {
		boundaryWKT = geoindex.WKTPolygon(boundary)
	}

	query := `
		INSERT INTO places (name, place_type, country, province, center_geom, boundary_geom, geohash, metadata)
		VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography,
		        CASE WHEN $7::text IS NULL THEN NULL ELSE ST_SetSRID(ST_GeomFromText($7), 4326)::geography END,
		        $8, $9)
		ON CONFLICT (name, place_type, province)
		DO UPDATE SET
			center_geom = EXCLUDED.center_geom,
			boundary_geom = COALESCE(EXCLUDED.boundary_geom, places.boundary_geom),
			geohash = EXCLUDED.geohash,
			metadata = EXCLUDED.metadata
		RETURNING place_id
	`
	var placeID int64
	err = s.pool.QueryRow(ctx, query, name, string(placeType), country, province,
		center.Lon, center.Lat, boundaryWKT, geohash, metadataJSON).Scan(&placeID)
	if err != nil {
		return 0, fmt.Errorf("relstore: upsert place: %w", err)
	}
	return placeID, nil
}

// PlacesContaining returns every place whose boundary polygon contains
// (lat, lon), via ST_Contains. boundary_geom is stored as geography so the
// predicate casts both sides down to geometry at the query site.
func (s *Store) PlacesContaining(ctx context.Context, lat, lon float64) ([]graph.PlaceContainment, error) {
	query := `
		SELECT place_id, name, place_type, province
		FROM places
		WHERE boundary_geom IS NOT NULL
		  AND ST_Contains(boundary_geom::geometry, ST_SetSRID(ST_MakePoint($1, $2), 4326))
	`
	rows, err := s.pool.Query(ctx, query, lon, lat)
	if err != nil {
		return nil, fmt.Errorf("relstore: places containing: %w", err)
	}
	defer rows.Close()

	var out []graph.PlaceContainment
	for rows.Next() {
		var c graph.PlaceContainment
		var placeType string
		if err := rows.Scan(&c.PlaceID, &c.Name, &placeType, &c.Province); err != nil {
			return nil, fmt.Errorf("relstore: scan place containment: %w", err)
		}
		c.Type = graph.PlaceType(placeType)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("relstore: places containing rows: %w", err)
	}
	return out, nil
}

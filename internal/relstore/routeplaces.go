package relstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

// RoutePlacesGet returns the durable copy of the places-along-route list
// for (src, dst), or ErrRoutePlacesMiss.
func (s *Store) RoutePlacesGet(ctx context.Context, src, dst int64) (*graph.RoutePlacesEntry, error) {
	query := `
		SELECT source_place_id, target_place_id, places_data, total_places, updated_at
		FROM route_places_cache
		WHERE source_place_id = $1 AND target_place_id = $2
	`
	row := s.pool.QueryRow(ctx, query, src, dst)

	var entry graph.RoutePlacesEntry
	var placesJSON []byte
	err := row.Scan(&entry.SourcePlaceID, &entry.TargetPlaceID, &placesJSON, &entry.TotalPlaces, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoutePlacesMiss
		}
		return nil, fmt.Errorf("relstore: route places get (%d,%d): %w", src, dst, err)
	}
	if err := json.Unmarshal(placesJSON, &entry.Places); err != nil {
		return nil, fmt.Errorf("relstore: unmarshal route places: %w", err)
	}
	return &entry, nil
}

// RoutePlacesUpsert writes the durable copy, overwriting any existing entry
// for (src, dst).
func (s *Store) RoutePlacesUpsert(ctx context.Context, entry graph.RoutePlacesEntry) error {
	placesJSON, err := json.Marshal(entry.Places)
	if err != nil {
		return fmt.Errorf("relstore: marshal route places: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO route_places_cache (source_place_id, target_place_id, places_data, total_places, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_place_id, target_place_id) DO UPDATE SET
			places_data = EXCLUDED.places_data,
			total_places = EXCLUDED.total_places,
			updated_at = EXCLUDED.updated_at
	`, entry.SourcePlaceID, entry.TargetPlaceID, placesJSON, entry.TotalPlaces, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("relstore: route places upsert (%d,%d): %w", entry.SourcePlaceID, entry.TargetPlaceID, err)
	}
	return nil
}

// RoutePlacesClear deletes entries. When src and dst are both zero, clears
// everything; otherwise targets the specific pair.
func (s *Store) RoutePlacesClear(ctx context.Context, src, dst int64) error {
	if src == 0 && dst == 0 {
		_, err := s.pool.Exec(ctx, `DELETE FROM route_places_cache`)
		if err != nil {
			return fmt.Errorf("relstore: clear all route places: %w", err)
		}
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM route_places_cache WHERE source_place_id = $1 AND target_place_id = $2`, src, dst)
	if err != nil {
		return fmt.Errorf("relstore: clear route places (%d,%d): %w", src, dst, err)
	}
	return nil
}

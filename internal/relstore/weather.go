package relstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

// WeatherCacheGetByPrefix returns the newest (by created_at) durable
// weather row whose cache_key starts with prefix, or ErrWeatherCacheMiss.
func (s *Store) WeatherCacheGetByPrefix(ctx context.Context, prefix string) (*graph.WeatherCell, error) {
	query := `
		SELECT cache_key, geohash, forecast_hour, model_run_time, weather_data, created_at, expires_at
		FROM weather_cache
		WHERE cache_key LIKE $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := s.pool.QueryRow(ctx, query, prefix+"%")

	var cell graph.WeatherCell
	var payloadJSON []byte
	err := row.Scan(&cell.CacheKey, &cell.H3Index, &cell.ForecastHour, &cell.ModelRunTime, &payloadJSON, &cell.CreatedAt, &cell.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWeatherCacheMiss
		}
		return nil, fmt.Errorf("relstore: weather cache get by prefix %q: %w", prefix, err)
	}
	if err := json.Unmarshal(payloadJSON, &cell.Payload); err != nil {
		return nil, fmt.Errorf("relstore: unmarshal weather payload: %w", err)
	}
	return &cell, nil
}

// WeatherCacheUpsert writes the durable copy of a weather cell, keyed by
// cache_key. Concurrent writers for the same key converge via upsert.
func (s *Store) WeatherCacheUpsert(ctx context.Context, cell graph.WeatherCell) error {
	payloadJSON, err := json.Marshal(cell.Payload)
	if err != nil {
		return fmt.Errorf("relstore: marshal weather payload: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO weather_cache (cache_key, geohash, forecast_hour, model_run_time, weather_data, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cache_key) DO UPDATE SET
			weather_data = EXCLUDED.weather_data,
			model_run_time = EXCLUDED.model_run_time,
			expires_at = EXCLUDED.expires_at
	`, cell.CacheKey, cell.H3Index, cell.ForecastHour, cell.ModelRunTime, payloadJSON, cell.ExpiresAt, cell.CreatedAt)
	if err != nil {
		return fmt.Errorf("relstore: weather cache upsert %q: %w", cell.CacheKey, err)
	}
	return nil
}

// WeatherCacheInvalidateH3 deletes every row for an h3/geohash cell,
// returning the number removed. Called before storing a new model run.
func (s *Store) WeatherCacheInvalidateH3(ctx context.Context, h3 string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM weather_cache WHERE geohash = $1`, h3)
	if err != nil {
		return 0, fmt.Errorf("relstore: invalidate weather h3 %q: %w", h3, err)
	}
	return int(tag.RowsAffected()), nil
}

// WeatherCacheSweepExpired removes rows past expires_at + maxStale, used by
// the refresh worker's periodic TTL sweep.
func (s *Store) WeatherCacheSweepExpired(ctx context.Context, maxStale time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM weather_cache WHERE expires_at < $1`, time.Now().Add(-maxStale))
	if err != nil {
		return 0, fmt.Errorf("relstore: sweep expired weather cache: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

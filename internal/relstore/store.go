// Package relstore is a typed facade over the relational + spatial store
// (PostgreSQL + PostGIS + pgRouting) that owns Places, Nodes and Edges as
// the source of truth, and holds the durable copies of WeatherCell and
// RoutePlacesEntry rows that KVCache keeps a hot copy of.
package relstore

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Sentinel not-found errors, following a per-repository ErrXNotFound idiom.
var (
	ErrPlaceNotFound  = errors.New("relstore: place not found")
	ErrNodeNotFound   = errors.New("relstore: node not found")
	ErrWeatherCacheMiss = errors.New("relstore: weather cache miss")
	ErrRoutePlacesMiss  = errors.New("relstore: route places miss")
)

// Store is the durable facade over places, nodes and edges.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New builds a Store over an already-connected pool (see
// internal/database.Connect).
func New(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{pool: pool, logger: logger.With().Str("component", "relstore").Logger()}
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

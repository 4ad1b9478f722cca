// Package routeplaces caches the list of places observed along a
// (source place, target place) route, KVCache-first with RelStore fallback.
package routeplaces

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

// DefaultTTL is the KVCache warm TTL applied on a RelStore fallback hit.
const DefaultTTL = 24 * time.Hour

// KV is the subset of KVCache used by RoutePlacesCache.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetEX(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Durable is the subset of RelStore used by RoutePlacesCache.
type Durable interface {
	RoutePlacesGet(ctx context.Context, src, dst int64) (*graph.RoutePlacesEntry, error)
	RoutePlacesUpsert(ctx context.Context, entry graph.RoutePlacesEntry) error
	RoutePlacesClear(ctx context.Context, src, dst int64) error
}

// Cache caches the list of places observed along a computed route.
type Cache struct {
	kv      KV
	durable Durable
	logger  zerolog.Logger
}

// New builds a Cache.
func New(kv KV, durable Durable, logger zerolog.Logger) *Cache {
	return &Cache{kv: kv, durable: durable, logger: logger.With().Str("component", "routeplaces").Logger()}
}

func key(src, dst int64) string {
	return fmt.Sprintf("route:places:%d:%d", src, dst)
}

// Get returns the places along (src, dst), or nil if neither layer has one.
func (c *Cache) Get(ctx context.Context, src, dst int64) ([]graph.RoutePlace, error) {
	k := key(src, dst)

	if raw, found, err := c.kv.Get(ctx, k); err == nil && found {
		var entry graph.RoutePlacesEntry
		if jsonErr := json.Unmarshal(raw, &entry); jsonErr == nil {
			return entry.Places, nil
		}
	} else if err != nil {
		c.logger.Warn().Err(err).Msg("routeplaces: kv read failed, falling back to relstore")
	}

	entry, err := c.durable.RoutePlacesGet(ctx, src, dst)
	if err != nil {
		return nil, nil
	}

	if raw, marshalErr := json.Marshal(entry); marshalErr == nil {
		if warmErr := c.kv.SetEX(ctx, k, raw, DefaultTTL); warmErr != nil {
			c.logger.Warn().Err(warmErr).Msg("routeplaces: failed to warm kv after relstore hit")
		}
	}
	return entry.Places, nil
}

// Set writes places for (src, dst) to both layers, overwriting any existing
// entry.
func (c *Cache) Set(ctx context.Context, src, dst int64, places []graph.RoutePlace) error {
	entry := graph.RoutePlacesEntry{
		SourcePlaceID: src,
		TargetPlaceID: dst,
		Places:        places,
		TotalPlaces:   len(places),
		UpdatedAt:     time.Now(),
	}

	if err := c.durable.RoutePlacesUpsert(ctx, entry); err != nil {
		return fmt.Errorf("routeplaces: durable upsert: %w", err)
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("routeplaces: marshal entry: %w", err)
	}
	if err := c.kv.SetEX(ctx, key(src, dst), raw, DefaultTTL); err != nil {
		c.logger.Warn().Err(err).Msg("routeplaces: kv write failed")
	}
	return nil
}

// Clear drops a targeted (src, dst) entry from RelStore and KVCache, or
// every RelStore entry when both are zero. A global clear leaves KVCache
// copies in place until their TTL expires.
func (c *Cache) Clear(ctx context.Context, src, dst int64) error {
	if err := c.durable.RoutePlacesClear(ctx, src, dst); err != nil {
		return fmt.Errorf("routeplaces: durable clear: %w", err)
	}
	if src == 0 && dst == 0 {
		return nil
	}
	if err := c.kv.Del(ctx, key(src, dst)); err != nil {
		c.logger.Warn().Err(err).Msg("routeplaces: kv clear failed")
	}
	return nil
}

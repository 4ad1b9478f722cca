// Package weathercache caches forecast payloads per (H3/geohash cell,
// forecast hour, model run), with TTL aligned to the local hour at the
// query point, stale-while-revalidate, and model-refresh invalidation.
package weathercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nimbusgraph/nimbusgraph/internal/geoindex"
	"github.com/nimbusgraph/nimbusgraph/internal/graph"
	"github.com/nimbusgraph/nimbusgraph/internal/tzindex"
)

// DefaultMaxStale is the default ceiling on stale-while-revalidate serving.
const DefaultMaxStale = 1 * time.Hour

// DefaultFloorTTL is the minimum TTL ever assigned to a cache write.
const DefaultFloorTTL = 60 * time.Second

// KV is the subset of KVCache used by WeatherCache.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)
	SetEX(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Durable is the subset of RelStore used by WeatherCache.
type Durable interface {
	WeatherCacheGetByPrefix(ctx context.Context, prefix string) (*graph.WeatherCell, error)
	WeatherCacheUpsert(ctx context.Context, cell graph.WeatherCell) error
	WeatherCacheInvalidateH3(ctx context.Context, h3 string) (int, error)
}

// Cache caches forecast payloads with TTL aligned to the local hour.
type Cache struct {
	kv       KV
	durable  Durable
	tz       tzindex.Resolver
	maxStale time.Duration
	logger   zerolog.Logger
}

// Config configures the stale-serving ceiling (MAX_STALE_SECONDS). The TTL
// floor is not configurable: it is always DefaultFloorTTL.
type Config struct {
	MaxStale time.Duration
}

// New builds a Cache.
func New(kv KV, durable Durable, tz tzindex.Resolver, cfg Config, logger zerolog.Logger) *Cache {
	maxStale := cfg.MaxStale
	if maxStale <= 0 {
		maxStale = DefaultMaxStale
	}
	return &Cache{kv: kv, durable: durable, tz: tz, maxStale: maxStale, logger: logger.With().Str("component", "weathercache").Logger()}
}

var modelRunSanitizer = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// sanitizeModelRun encodes an upstream model-run timestamp into a short key
// segment; an absent model run maps to "unknown".
func sanitizeModelRun(modelRun string) string {
	if modelRun == "" {
		return "unknown"
	}
	return strings.ToLower(modelRunSanitizer.ReplaceAllString(modelRun, ""))
}

// hourBucket formats forecastTime (converted to UTC) as YYYYMMDDHH.
func hourBucket(forecastTime time.Time) string {
	return forecastTime.UTC().Format("2006010215")
}

// Key builds the cache key for a (lat, lon, forecastTime, modelRun) query.
func Key(lat, lon float64, forecastTime time.Time, modelRun string) string {
	return KeyPrefix(lat, lon, forecastTime) + sanitizeModelRun(modelRun)
}

// KeyPrefix builds the geohash/hour portion of the key, shared by every
// model run of the same cell and hour.
func KeyPrefix(lat, lon float64, forecastTime time.Time) string {
	gh := geoindex.EncodeGeohash(lat, lon, 7)
	return fmt.Sprintf("weather:%s_%s_", gh, hourBucket(forecastTime))
}

// ttlFor computes the duration until the top of the next local hour at
// (lat, lon), floored at DefaultFloorTTL.
func (c *Cache) ttlFor(lat, lon float64, now time.Time) time.Duration {
	loc := c.tz.LocationOf(lat, lon)
	local := now.In(loc)
	nextHour := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc).Add(time.Hour)
	ttl := nextHour.Sub(local)
	if ttl < DefaultFloorTTL {
		ttl = DefaultFloorTTL
	}
	return ttl
}

// Result is what Get returns: the cell and whether it was served stale.
type Result struct {
	Cell  graph.WeatherCell
	Stale bool
}

// ErrMiss indicates neither KVCache nor RelStore has a usable entry.
var ErrMiss = errors.New("weathercache: miss")

// Get looks up weather for (lat, lon, forecastTime). When allowStale is
// true, an expired entry within maxStale of its expiry is still returned,
// marked stale.
func (c *Cache) Get(ctx context.Context, lat, lon float64, forecastTime time.Time, allowStale bool) (*Result, error) {
	prefix := KeyPrefix(lat, lon, forecastTime)

	if keys, err := c.kv.ScanPrefix(ctx, prefix); err == nil && len(keys) > 0 {
		raw, found, getErr := c.kv.Get(ctx, keys[0])
		if getErr == nil && found {
			var cell graph.WeatherCell
			if jsonErr := json.Unmarshal(raw, &cell); jsonErr == nil {
				return c.classify(cell, allowStale)
			}
		}
	} else if err != nil {
		c.logger.Warn().Err(err).Msg("weathercache: kv scan failed, falling back to relstore")
	}

	cell, err := c.durable.WeatherCacheGetByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w", ErrMiss)
	}

	if raw, marshalErr := json.Marshal(cell); marshalErr == nil {
		ttl := c.ttlFor(lat, lon, time.Now())
		if warmErr := c.kv.SetEX(ctx, cell.CacheKey, raw, ttl); warmErr != nil {
			c.logger.Warn().Err(warmErr).Msg("weathercache: failed to warm kv after relstore hit")
		}
	}
	return c.classify(*cell, allowStale)
}

func (c *Cache) classify(cell graph.WeatherCell, allowStale bool) (*Result, error) {
	now := time.Now()
	if now.Before(cell.ExpiresAt) {
		return &Result{Cell: cell, Stale: false}, nil
	}
	if allowStale && now.Sub(cell.ExpiresAt) <= c.maxStale {
		return &Result{Cell: cell, Stale: true}, nil
	}
	return nil, fmt.Errorf("%w", ErrMiss)
}

// Set writes payload for (lat, lon, forecastTime, modelRun). If modelRun
// differs from the most recent entry for this geohash, every existing entry
// for that geohash is invalidated first.
func (c *Cache) Set(ctx context.Context, lat, lon float64, forecastTime time.Time, payload graph.WeatherPayload, modelRun string) error {
	gh := geoindex.EncodeGeohash(lat, lon, 7)
	key := Key(lat, lon, forecastTime, modelRun)
	now := time.Now()

	if prevKeys, err := c.kv.ScanPrefix(ctx, fmt.Sprintf("weather:%s_", gh)); err == nil {
		for _, prevKey := range prevKeys {
			if prevKey == key {
				continue
			}
			if !strings.HasSuffix(prevKey, sanitizeModelRun(modelRun)) {
				c.invalidateGeohash(ctx, gh)
				break
			}
		}
	}

	cell := graph.WeatherCell{
		CacheKey:     key,
		H3Index:      gh,
		ForecastHour: forecastTime.UTC().Truncate(time.Hour),
		ModelRunTime: sanitizeModelRun(modelRun),
		Payload:      payload,
		CreatedAt:    now,
		ExpiresAt:    now.Add(c.ttlFor(lat, lon, now)),
	}

	raw, err := json.Marshal(cell)
	if err != nil {
		return fmt.Errorf("weathercache: marshal cell: %w", err)
	}
	ttl := c.ttlFor(lat, lon, now)
	if err := c.kv.SetEX(ctx, key, raw, ttl); err != nil {
		c.logger.Warn().Err(err).Msg("weathercache: kv write failed")
	}
	if err := c.durable.WeatherCacheUpsert(ctx, cell); err != nil {
		return fmt.Errorf("weathercache: durable upsert: %w", err)
	}
	return nil
}

func (c *Cache) invalidateGeohash(ctx context.Context, geohash string) {
	if keys, err := c.kv.ScanPrefix(ctx, fmt.Sprintf("weather:%s_", geohash)); err == nil && len(keys) > 0 {
		if err := c.kv.Del(ctx, keys...); err != nil {
			c.logger.Warn().Err(err).Str("geohash", geohash).Msg("weathercache: kv invalidation failed")
		}
	}
	if _, err := c.durable.WeatherCacheInvalidateH3(ctx, geohash); err != nil {
		c.logger.Warn().Err(err).Str("geohash", geohash).Msg("weathercache: durable invalidation failed")
	}
}

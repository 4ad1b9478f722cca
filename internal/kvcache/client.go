// Package kvcache is a thin typed facade over a Redis-compatible key-value
// store. Every method maps its Redis error onto graph.ErrCacheDegraded; the
// raw driver error never escapes into business logic, so callers can
// unconditionally fall back to RelStore on any non-nil error.
package kvcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

// Option configures the underlying redis.Options before the client dials.
type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithMinIdleConns(n int) Option {
	return func(o *redis.Options) { o.MinIdleConns = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.WriteTimeout = d }
}

// Client is the typed cache facade used by GeoNodeCache, WeatherCache,
// RoutePlacesCache and Singleflight.
type Client struct {
	rdb *redis.Client
}

// New dials addr and verifies connectivity with a PING.
func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: redis address is required", graph.ErrInputInvalid)
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     64,
		MinIdleConns: 4,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", graph.ErrCacheDegraded, err)
	}
	return &Client{rdb: rdb}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Get reads a single key. Returns (nil, false, nil) on a cache miss.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: GET %q: %v", graph.ErrCacheDegraded, key, err)
	}
	return val, true, nil
}

// MGet returns a map of found keys to their values; missing keys are absent
// from the result rather than erroring.
func (c *Client) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: MGET %d keys: %v", graph.ErrCacheDegraded, len(keys), err)
	}
	out := make(map[string][]byte, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			out[keys[i]] = []byte(t)
		case []byte:
			out[keys[i]] = t
		}
	}
	return out, nil
}

// SetEX writes key with a required TTL.
func (c *Client) SetEX(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("%w: SETEX %q: %v", graph.ErrCacheDegraded, key, err)
	}
	return nil
}

// MSetWithTTL writes every key in kv with the same TTL in one pipeline.
func (c *Client) MSetWithTTL(ctx context.Context, kv map[string][]byte, ttl time.Duration) error {
	if len(kv) == 0 {
		return nil
	}
	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for k, v := range kv {
			p.Set(ctx, k, v, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: MSET %d keys: %v", graph.ErrCacheDegraded, len(kv), err)
	}
	return nil
}

// Del removes the given keys. A no-op if keys is empty.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: DEL %d keys: %v", graph.ErrCacheDegraded, len(keys), err)
	}
	return nil
}

// ScanPrefix returns every key matching prefix+"*", paging through SCAN
// cursors rather than blocking the server with KEYS.
func (c *Client) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var cursor uint64
	match := prefix + "*"
	for {
		batch, next, err := c.rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: SCAN %q: %v", graph.ErrCacheDegraded, match, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// SetNX atomically creates key with value val and TTL ttl iff it does not
// already exist. Reports whether the key was created, used by Singleflight
// as a distributed mutex.
func (c *Client) SetNX(ctx context.Context, key string, val []byte, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, val, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: SETNX %q: %v", graph.ErrCacheDegraded, key, err)
	}
	return ok, nil
}

// GeoAdd indexes member at (lon, lat) in the geospatial set key.
func (c *Client) GeoAdd(ctx context.Context, key string, lon, lat float64, member string) error {
	err := c.rdb.GeoAdd(ctx, key, &redis.GeoLocation{Name: member, Longitude: lon, Latitude: lat}).Err()
	if err != nil {
		return fmt.Errorf("%w: GEOADD %q: %v", graph.ErrCacheDegraded, key, err)
	}
	return nil
}

// GeoRadius finds members of key within radiusKm of (lon, lat), nearest first.
func (c *Client) GeoRadius(ctx context.Context, key string, lon, lat, radiusKm float64) ([]graph.GeoMember, error) {
	res, err := c.rdb.GeoSearchLocation(ctx, key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lon,
			Latitude:   lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: GEOSEARCH %q: %v", graph.ErrCacheDegraded, key, err)
	}
	out := make([]graph.GeoMember, 0, len(res))
	for _, r := range res {
		out = append(out, graph.GeoMember{Name: r.Name, DistKm: r.Dist, Lon: r.Longitude, Lat: r.Latitude})
	}
	return out, nil
}

// GeoPos returns the (lon, lat) of member in key, or false if absent.
func (c *Client) GeoPos(ctx context.Context, key, member string) (lon, lat float64, found bool, err error) {
	res, err := c.rdb.GeoPos(ctx, key, member).Result()
	if err != nil {
		return 0, 0, false, fmt.Errorf("%w: GEOPOS %q: %v", graph.ErrCacheDegraded, key, err)
	}
	if len(res) == 0 || res[0] == nil {
		return 0, 0, false, nil
	}
	return res[0].Longitude, res[0].Latitude, true, nil
}

// GeoDist returns the distance in km between two members of key.
func (c *Client) GeoDist(ctx context.Context, key, member1, member2 string) (float64, error) {
	d, err := c.rdb.GeoDist(ctx, key, member1, member2, "km").Result()
	if err != nil {
		return 0, fmt.Errorf("%w: GEODIST %q: %v", graph.ErrCacheDegraded, key, err)
	}
	return d, nil
}

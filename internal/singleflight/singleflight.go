// Package singleflight deduplicates concurrent fetches of the same key
// across process boundaries, using a KVCache-held lease rather than
// golang.org/x/sync/singleflight's in-process group: multiple API
// instances racing on the same weather cell must still collapse to one
// upstream call.
package singleflight

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

// Lease is the subset of KVCache used to hold a distributed mutex and to
// publish/observe the winning fetcher's result.
type Lease interface {
	SetNX(ctx context.Context, key string, val []byte, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Group coordinates get_or_fetch calls. Safe for concurrent use; the only
// in-process state is a logger, so it may be shared across every caller.
// An in-process mutex for the in-flight registry is unnecessary here
// because the dedup lock itself lives in KVCache, not in a local map.
type Group struct {
	lease  Lease
	logger zerolog.Logger
}

// New builds a Group over a Lease implementation (normally *kvcache.Client).
func New(lease Lease, logger zerolog.Logger) *Group {
	return &Group{lease: lease, logger: logger.With().Str("component", "singleflight").Logger()}
}

// FetchFunc performs the expensive work and serializes its own result for
// the cache; followers deserialize what it returns.
type FetchFunc func(ctx context.Context) ([]byte, error)

// GetOrFetch runs fetch at most once among every concurrent caller sharing
// key within timeout. Followers either observe the leader's published
// result or, once timeout elapses with nothing published, fall through to
// running fetch themselves (accepting possible duplication over stalling).
//
// If KVCache is unreachable at lease-acquisition time, GetOrFetch degrades
// to unconditional direct execution of fetch.
func (g *Group) GetOrFetch(ctx context.Context, key string, fetch FetchFunc, timeout time.Duration) ([]byte, error) {
	lockKey := "lock:" + key

	acquired, err := g.lease.SetNX(ctx, lockKey, []byte("1"), timeout)
	if err != nil {
		g.logger.Warn().Err(err).Str("key", key).Msg("singleflight: lease unavailable, degrading to direct execution")
		return fetch(ctx)
	}

	if acquired {
		defer func() {
			if delErr := g.lease.Del(context.WithoutCancel(ctx), lockKey); delErr != nil {
				g.logger.Warn().Err(delErr).Str("key", key).Msg("singleflight: failed to release lease")
			}
		}()
		return fetch(ctx)
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		val, found, err := g.lease.Get(ctx, key)
		if err == nil && found {
			return val, nil
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", graph.ErrUpstreamUnavailable, ctx.Err())
		case <-ticker.C:
		}
	}

	g.logger.Debug().Str("key", key).Msg("singleflight: timeout waiting for leader, running fetch directly")
	return fetch(ctx)
}

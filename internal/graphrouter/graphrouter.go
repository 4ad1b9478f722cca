// Package graphrouter finds the cheapest materialized path between two
// places' access nodes, trying every (source node, target node) pair.
package graphrouter

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

// Durable is the subset of RelStore used by GraphRouter.
type Durable interface {
	AccessNodesOf(ctx context.Context, placeID int64) ([]int64, error)
	ShortestPath(ctx context.Context, srcNode, dstNode int64) ([]graph.PathStep, error)
	NodeGeometries(ctx context.Context, nodeIDs []int64) ([]graph.Coordinate, error)
}

// Router finds the cheapest materialized path between two places' access nodes.
type Router struct {
	rel    Durable
	logger zerolog.Logger
}

// New builds a Router.
func New(rel Durable, logger zerolog.Logger) *Router {
	return &Router{rel: rel, logger: logger.With().Str("component", "graphrouter").Logger()}
}

type candidate struct {
	steps   []graph.PathStep
	srcNode int64
	dstNode int64
}

func (c candidate) totalCost() float64 {
	if len(c.steps) == 0 {
		return 0
	}
	return c.steps[len(c.steps)-1].AggCost
}

func (c candidate) totalDistance() float64 {
	var sum float64
	for _, s := range c.steps {
		sum += s.DistanceMeters
	}
	return sum
}

// FindRoute finds the cheapest path between any access node of srcPlaceID
// and any access node of dstPlaceID. It returns (nil, nil) when no path
// currently exists in the graph — that is a cache-miss signal, not an
// error.
func (r *Router) FindRoute(ctx context.Context, srcPlaceID, dstPlaceID int64) (*graph.Path, error) {
	srcNodes, err := r.rel.AccessNodesOf(ctx, srcPlaceID)
	if err != nil {
		return nil, fmt.Errorf("graphrouter: access nodes of src %d: %w", srcPlaceID, err)
	}
	dstNodes, err := r.rel.AccessNodesOf(ctx, dstPlaceID)
	if err != nil {
		return nil, fmt.Errorf("graphrouter: access nodes of dst %d: %w", dstPlaceID, err)
	}
	if len(srcNodes) == 0 || len(dstNodes) == 0 {
		return nil, nil
	}

	var best *candidate
	for _, s := range srcNodes {
		for _, t := range dstNodes {
			steps, err := r.rel.ShortestPath(ctx, s, t)
			if err != nil {
				r.logger.Warn().Err(err).Int64("src_node", s).Int64("dst_node", t).Msg("graphrouter: shortest path query failed")
				continue
			}
			if len(steps) == 0 {
				continue
			}
			cand := candidate{steps: steps, srcNode: s, dstNode: t}
			if better(cand, best) {
				best = &cand
			}
		}
	}
	if best == nil {
		return nil, nil
	}

	return r.materialize(ctx, *best)
}

// better reports whether a beats the current best: lower total cost wins,
// ties broken by total distance then by smaller starting node id.
func better(a candidate, best *candidate) bool {
	if best == nil {
		return true
	}
	ac, bc := a.totalCost(), best.totalCost()
	if ac != bc {
		return ac < bc
	}
	ad, bd := a.totalDistance(), best.totalDistance()
	if ad != bd {
		return ad < bd
	}
	return a.srcNode < best.srcNode
}

func (r *Router) materialize(ctx context.Context, cand candidate) (*graph.Path, error) {
	nodeIDs := make([]int64, 0, len(cand.steps))
	edges := make([]graph.PathEdge, 0, len(cand.steps))
	var totalDist, totalDur float64

	for _, step := range cand.steps {
		nodeIDs = append(nodeIDs, step.NodeID)
		if step.EdgeID != 0 {
			edges = append(edges, graph.PathEdge{
				EdgeID:         step.EdgeID,
				SourceNode:     step.NodeID,
				DistanceMeters: step.DistanceMeters,
				DurationS:      step.DurationS,
			})
			totalDist += step.DistanceMeters
			totalDur += step.DurationS
		}
	}

	geometry, err := r.rel.NodeGeometries(ctx, nodeIDs)
	if err != nil {
		return nil, fmt.Errorf("graphrouter: materialize geometry: %w", err)
	}

	return &graph.Path{
		NodeIDs:             nodeIDs,
		Edges:               edges,
		Geometry:            geometry,
		TotalDistanceMeters: totalDist,
		TotalDurationS:      totalDur,
	}, nil
}

// Package routerapi wraps the external turn-by-turn routing provider
// consumed by GraphBuilder for "last mile" and direct-route lookups.
package routerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
	"github.com/nimbusgraph/nimbusgraph/internal/provider/resilience"
	"github.com/nimbusgraph/nimbusgraph/pkg/polyline"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "osrm"

	// DefaultBaseURL is a public OSRM-compatible routing service base URL.
	DefaultBaseURL = "https://router.project-osrm.org/route/v1/driving"
)

// HTTPDoer is the subset of *resilience.Client this package depends on.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures the router client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient HTTPDoer
	Logger     zerolog.Logger
}

// Client fetches dense turn-by-turn routes between two coordinates.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient builds a Client, defaulting to a resilient circuit-breaker-
// wrapped HTTP client if none is supplied.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: cfg.Logger}
}

// Name returns the provider name.
func (c *Client) Name() string { return ProviderName }

// Step is one turn-by-turn leg of a raw route, annotated with a road-class
// hint used by GraphBuilder's speed-table lookup.
type Step struct {
	DistanceMeters  float64
	DurationSeconds float64
	RoadClass       string // empty when the provider does not annotate road class
}

// RawRoute is the provider-neutral shape GraphBuilder's inject_route
// consumes: a dense polyline plus optional per-step annotations.
type RawRoute struct {
	Coords          []graph.Coordinate
	DurationSeconds float64
	DistanceMeters  float64
	Steps           []Step
}

// GetRoute fetches the fastest route from origin to destination.
func (c *Client) GetRoute(ctx context.Context, origin, destination graph.Coordinate) (*RawRoute, error) {
	url := fmt.Sprintf("%s/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=polyline&steps=true",
		c.baseURL, origin.Lon, origin.Lat, destination.Lon, destination.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("routerapi: build request: %w", err)
	}

	c.logger.Debug().
		Float64("origin_lat", origin.Lat).Float64("origin_lon", origin.Lon).
		Float64("dest_lat", destination.Lat).Float64("dest_lon", destination.Lon).
		Msg("routerapi: requesting route")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: routerapi: %v", graph.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: routerapi status %d", graph.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("routerapi: decode response: %w", err)
	}
	if len(body.Routes) == 0 {
		return nil, fmt.Errorf("%w: routerapi: no route returned", graph.ErrUpstreamUnavailable)
	}

	return toRawRoute(&body.Routes[0]), nil
}

func toRawRoute(r *osrmRoute) *RawRoute {
	decoded := polyline.Decode(r.Geometry)
	coords := make([]graph.Coordinate, 0, len(decoded))
	for _, p := range decoded {
		coords = append(coords, graph.Coordinate{Lat: p.Lat, Lon: p.Lon})
	}

	var steps []Step
	for _, leg := range r.Legs {
		for _, s := range leg.Steps {
			steps = append(steps, Step{
				DistanceMeters:  s.Distance,
				DurationSeconds: s.Duration,
				RoadClass:       s.Name,
			})
		}
	}

	return &RawRoute{
		Coords:          coords,
		DurationSeconds: r.Duration,
		DistanceMeters:  r.Distance,
		Steps:           steps,
	}
}

type osrmResponse struct {
	Routes []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Geometry string    `json:"geometry"`
	Distance float64   `json:"distance"`
	Duration float64   `json:"duration"`
	Legs     []osrmLeg `json:"legs"`
}

type osrmLeg struct {
	Steps []osrmStep `json:"steps"`
}

type osrmStep struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Name     string  `json:"name"`
}

// fetchTimeout bounds a single GetRoute call; callers should derive a
// context with this timeout when the caller has no deadline of its own.
const fetchTimeout = 10 * time.Second

// DefaultTimeout exposes fetchTimeout for wiring code building contexts.
func DefaultTimeout() time.Duration { return fetchTimeout }

// Package boundaryapi wraps the external Overpass-compatible boundary
// provider consumed by Seeder when a place is not yet in RelStore.
package boundaryapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
	"github.com/nimbusgraph/nimbusgraph/internal/provider/resilience"
)

const (
	// ProviderName identifies this boundary provider.
	ProviderName = "overpass"

	// DefaultBaseURL is a public Overpass API instance.
	DefaultBaseURL = "https://overpass-api.de/api/interpreter"
)

// HTTPDoer is the subset of *resilience.Client this package depends on.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures the boundary client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient HTTPDoer
	Logger     zerolog.Logger
}

// Client fetches administrative boundary polygons by name.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient builds a Client.
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

// Boundary is the resolved polygon and identity data for a named place.
type Boundary struct {
	Center  graph.Coordinate
	Polygon []graph.Coordinate // vertices of the "outer" members in member order (not closed here), nil when there are none
}

// FindBoundary queries Overpass for the administrative area matching name
// at the given admin_level, optionally scoped to country.
func (c *Client) FindBoundary(ctx context.Context, name string, country string, adminLevel int) (*Boundary, error) {
	query := buildQuery(name, country, adminLevel)
	reqURL := fmt.Sprintf("%s?data=%s", c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("boundaryapi: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: boundaryapi: %v", graph.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: boundaryapi status %d", graph.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("boundaryapi: decode response: %w", err)
	}
	if len(body.Elements) == 0 {
		return nil, fmt.Errorf("%w: boundaryapi: no element found for %q", graph.ErrUpstreamUnavailable, name)
	}

	return toBoundary(body.Elements[0]), nil
}

func buildQuery(name, country string, adminLevel int) string {
	var sb strings.Builder
	sb.WriteString("[out:json];")
	sb.WriteString(fmt.Sprintf(`relation["name"="%s"]["admin_level"="%d"]`, escapeQuery(name), adminLevel))
	if country != "" {
		sb.WriteString(fmt.Sprintf(`["addr:country"="%s"]`, escapeQuery(country)))
	}
	sb.WriteString(";out center geom;")
	return sb.String()
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

func toBoundary(el overpassElement) *Boundary {
	b := &Boundary{Center: graph.Coordinate{Lat: el.Center.Lat, Lon: el.Center.Lon}}
	for _, member := range el.Members {
		if member.Role != "outer" {
			continue
		}
		for _, pt := range member.Geometry {
			b.Polygon = append(b.Polygon, graph.Coordinate{Lat: pt.Lat, Lon: pt.Lon})
		}
	}
	return b
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Center  overpassLatLon    `json:"center"`
	Members []overpassMember  `json:"members"`
}

type overpassLatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type overpassMember struct {
	Role     string           `json:"role"`
	Geometry []overpassLatLon `json:"geometry"`
}

// Package forecastapi wraps the external hourly-forecast provider consumed
// by WeatherOverlay on a WeatherCache miss.
package forecastapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nimbusgraph/nimbusgraph/internal/graph"
	"github.com/nimbusgraph/nimbusgraph/internal/provider/resilience"
)

const (
	// ProviderName identifies this forecast provider.
	ProviderName = "open-meteo"

	// DefaultBaseURL is the Open-Meteo forecast API base URL.
	DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"
)

// HTTPDoer is the subset of *resilience.Client this package depends on.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures the forecast client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient HTTPDoer
	Logger     zerolog.Logger
}

// Client fetches hourly forecast readings for a single point.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient builds a Client, defaulting to a resilient HTTP client wrapped
// in a circuit breaker if none is supplied.
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

// Name returns the provider name, for Singleflight/circuit-breaker logging.
func (c *Client) Name() string { return ProviderName }

// GetHourly fetches the hourly forecast for (lat, lon) covering the hour
// that contains forecastTime, along with the upstream model run tag.
func (c *Client) GetHourly(ctx context.Context, lat, lon float64, forecastTime time.Time) (graph.WeatherPayload, string, error) {
	url := fmt.Sprintf("%s?latitude=%.6f&longitude=%.6f&hourly=temperature_2m,weathercode&timezone=UTC",
		c.baseURL, lat, lon)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return graph.WeatherPayload{}, "", fmt.Errorf("forecastapi: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return graph.WeatherPayload{}, "", fmt.Errorf("%w: forecastapi: %v", graph.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return graph.WeatherPayload{}, "", fmt.Errorf("%w: forecastapi status %d", graph.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return graph.WeatherPayload{}, "", fmt.Errorf("forecastapi: decode response: %w", err)
	}

	idx := nearestHourIndex(body.Hourly.Time, forecastTime)
	if idx < 0 {
		return graph.WeatherPayload{}, "", fmt.Errorf("%w: forecastapi: no hourly entry for requested time", graph.ErrUpstreamUnavailable)
	}

	code := 0
	if idx < len(body.Hourly.WeatherCode) {
		code = body.Hourly.WeatherCode[idx]
	}
	temp := 0.0
	if idx < len(body.Hourly.Temperature2m) {
		temp = body.Hourly.Temperature2m[idx]
	}

	payload := graph.WeatherPayload{
		TemperatureC: temp,
		WeatherCode:  code,
		Category:     Categorize(code),
	}
	modelRun := body.GenerationTimeMs
	return payload, fmt.Sprintf("%.0f", modelRun), nil
}

func nearestHourIndex(hours []string, target time.Time) int {
	want := target.UTC().Format("2006-01-02T15:00")
	for i, h := range hours {
		if h == want {
			return i
		}
	}
	return -1
}

// Categorize maps a WMO weather code to one of the fixed overlay categories.
func Categorize(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code >= 1 && code <= 3:
		return "cloudy"
	case code >= 45 && code <= 48:
		return "fog"
	case code >= 51 && code <= 67, code >= 80 && code <= 82:
		return "rain"
	case code >= 71 && code <= 77, code >= 85 && code <= 86:
		return "snow"
	case code >= 95:
		return "thunderstorm"
	default:
		return "cloudy"
	}
}

type forecastResponse struct {
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature2m []float64 `json:"temperature_2m"`
		WeatherCode   []int     `json:"weathercode"`
	} `json:"hourly"`
	GenerationTimeMs float64 `json:"generationtime_ms"`
}

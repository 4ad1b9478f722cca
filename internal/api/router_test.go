package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusgraph/nimbusgraph/internal/api"
	"github.com/nimbusgraph/nimbusgraph/internal/api/models"
	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

type fakePlanner struct {
	result *graph.RouteResult
	err    *graph.PlanError
}

func (f *fakePlanner) PlanRoute(_ context.Context, _, _, _, _ string, _ time.Time, _ bool) (*graph.RouteResult, *graph.PlanError) {
	return f.result, f.err
}

func newTestRouter(planner *fakePlanner) http.Handler {
	logger := zerolog.New(io.Discard)
	return api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "2024-01-01T00:00:00Z",
		Logger:    logger,
		Planner:   planner,
	})
}

func sampleResult() *graph.RouteResult {
	return &graph.RouteResult{
		DistanceKm:     900,
		DurationHours:  10,
		Geometry:       []graph.Coordinate{{Lat: 35.7, Lon: 51.4}, {Lat: 36.3, Lon: 59.6}},
		WeatherSummary: "Clear conditions expected.",
		WeatherCells: []graph.WeatherCellSummary{
			{H3Index: "871f1d..", Lat: 35.7, Lon: 51.4, Weather: graph.WeatherPayload{TemperatureC: 22, Category: "clear"}},
		},
		PlacesOnRoute: []graph.PlaceAlertSummary{
			{Name: "Semnan", Type: graph.PlaceTypeCity, ArrivalTime: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC), Weather: graph.WeatherPayload{TemperatureC: 20, Category: "clear"}},
		},
		Stats: graph.RouteStats{CacheHit: false, NewAPICalls: 2, CellCacheHitRate: 0.5},
	}
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(&fakePlanner{})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.NotEmpty(t, health.Time)
}

func TestRouter_ReadinessCheck(t *testing.T) {
	router := newTestRouter(&fakePlanner{})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_PlanRoute_Success(t *testing.T) {
	router := newTestRouter(&fakePlanner{result: sampleResult()})

	body, _ := json.Marshal(models.PlanRouteRequest{
		Origin:         "Tehran",
		Destination:    "Mashhad",
		DepartureLocal: "2026-01-15T08:00:00+03:30",
		WithTraffic:    false,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/routes:plan", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.PlanRouteResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.InDelta(t, 900, resp.DistanceKm, 0.01)
	assert.Len(t, resp.WeatherCells, 1)
	assert.Len(t, resp.PlacesOnRoute, 1)
}

func TestRouter_PlanRoute_ValidationError(t *testing.T) {
	router := newTestRouter(&fakePlanner{})

	body, _ := json.Marshal(models.PlanRouteRequest{DepartureLocal: "not-a-time"})
	req := httptest.NewRequest(http.MethodPost, "/v1/routes:plan", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &problem)
	require.NoError(t, err)
	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	assert.Len(t, problem.Errors, 3)
}

func TestRouter_PlanRoute_NoRoute(t *testing.T) {
	router := newTestRouter(&fakePlanner{err: graph.NewPlanError("no_route", "no route found", graph.ErrNoRoute)})

	body, _ := json.Marshal(models.PlanRouteRequest{
		Origin: "Tehran", Destination: "Nowhere", DepartureLocal: "2026-01-15T08:00:00+03:30",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/routes:plan", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var problem models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &problem)
	require.NoError(t, err)
	assert.Equal(t, models.ProblemTypeNoRoute, problem.Type)
}

func TestRouter_PlanRoute_PlaceUnresolved(t *testing.T) {
	router := newTestRouter(&fakePlanner{err: graph.NewPlanError("unresolved_origin", `could not resolve origin "Nowhereville"`, graph.ErrUnresolved)})

	body, _ := json.Marshal(models.PlanRouteRequest{
		Origin: "Nowhereville", Destination: "Mashhad", DepartureLocal: "2026-01-15T08:00:00+03:30",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/routes:plan", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var problem models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &problem)
	require.NoError(t, err)
	assert.Equal(t, models.ProblemTypePlaceNotFound, problem.Type)
}

func TestRouter_RequestID_Generated(t *testing.T) {
	router := newTestRouter(&fakePlanner{})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	requestID := w.Header().Get("X-Request-Id")
	assert.NotEmpty(t, requestID)
	assert.Contains(t, requestID, "req_")
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	router := newTestRouter(&fakePlanner{})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "custom_request_id")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "custom_request_id", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(&fakePlanner{})

	req := httptest.NewRequest(http.MethodGet, "/v1/nonexistent", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

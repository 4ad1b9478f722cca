package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nimbusgraph/nimbusgraph/internal/api/middleware"
	"github.com/nimbusgraph/nimbusgraph/internal/api/models"
	"github.com/nimbusgraph/nimbusgraph/internal/api/response"
	"github.com/nimbusgraph/nimbusgraph/internal/graph"
)

// Planner is the subset of Orchestrator used by RouteHandler.
type Planner interface {
	PlanRoute(ctx context.Context, originName, destName, originCountry, destCountry string, departureLocal time.Time, withTraffic bool) (*graph.RouteResult, *graph.PlanError)
}

// RouteHandler exposes the routing cache engine's PlanRoute entry point.
type RouteHandler struct {
	planner Planner
}

// NewRouteHandler builds a RouteHandler over a Planner.
func NewRouteHandler(planner Planner) *RouteHandler {
	return &RouteHandler{planner: planner}
}

// PlanRoute handles POST /v1/routes:plan.
func (h *RouteHandler) PlanRoute(w http.ResponseWriter, r *http.Request) {
	var req models.PlanRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "request body is not valid JSON", nil)
		return
	}

	var fieldErrs []models.FieldError
	if req.Origin == "" {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "origin", Message: "required", Code: "required"})
	}
	if req.Destination == "" {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "destination", Message: "required", Code: "required"})
	}
	departure, err := time.Parse(time.RFC3339, req.DepartureLocal)
	if req.DepartureLocal == "" || err != nil {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "departure_local", Message: "must be an RFC3339 timestamp", Code: "invalid"})
	}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "one or more fields failed validation", fieldErrs)
		return
	}

	result, planErr := h.planner.PlanRoute(r.Context(), req.Origin, req.Destination, req.OriginCountry, req.DestinationCountry, departure, req.WithTraffic)
	if planErr != nil {
		writePlanError(w, r, planErr)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewPlanRouteResponse(result))
}

func writePlanError(w http.ResponseWriter, r *http.Request, planErr *graph.PlanError) {
	traceID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(planErr.Err, graph.ErrUnresolved):
		response.Error(w, r, models.NewPlaceNotFound(traceID, planErr.Message))
	case errors.Is(planErr.Err, graph.ErrNoRoute):
		response.Error(w, r, models.NewNoRoute(traceID, planErr.Message))
	case errors.Is(planErr.Err, graph.ErrUpstreamUnavailable), errors.Is(planErr.Err, graph.ErrCacheDegraded):
		response.ServiceUnavailable(w, r, planErr.Message)
	case errors.Is(planErr.Err, graph.ErrInputInvalid):
		response.BadRequest(w, r, planErr.Message, nil)
	default:
		response.InternalError(w, r, planErr.Message)
	}
}

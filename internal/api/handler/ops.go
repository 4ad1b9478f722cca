// Package handler implements the HTTP handlers mounted by the router.
package handler

import (
	"net/http"

	"github.com/nimbusgraph/nimbusgraph/internal/api/models"
	"github.com/nimbusgraph/nimbusgraph/internal/api/response"
)

// OpsHandler serves liveness/readiness checks and build metadata.
type OpsHandler struct {
	version   string
	buildTime string
}

// NewOpsHandler builds an OpsHandler.
func NewOpsHandler(version, buildTime string) *OpsHandler {
	return &OpsHandler{version: version, buildTime: buildTime}
}

// HealthCheck reports process liveness unconditionally.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.NewHealth(models.HealthStatusOK))
}

// ReadinessCheck reports whether the instance is ready to serve PlanRoute.
// The core's dependencies (KVCache, RelStore) are checked at startup; once
// the process is up, it is ready.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.NewHealth(models.HealthStatusOK))
}

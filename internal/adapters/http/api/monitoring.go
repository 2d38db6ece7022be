package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/logtech/roadsafe/internal/domain/types"
)

// MonitoringController reads and flips the monitoring switch.
type MonitoringController interface {
	Monitoring() types.MonitoringState
	SetMonitoring(ctx context.Context, enabled bool, vehicle string) (types.MonitoringState, error)
}

// MonitoringHandler handles the monitoring switch.
type MonitoringHandler struct {
	deps MonitoringController
}

// NewMonitoringHandler creates a new monitoring handler.
func NewMonitoringHandler(deps MonitoringController) *MonitoringHandler {
	return &MonitoringHandler{deps: deps}
}

type monitoringRequest struct {
	Enabled      *bool  `json:"enabled"`
	VehicleClass string `json:"vehicle_class"`
}

// HandleGetMonitoring handles GET /monitoring requests.
func (h *MonitoringHandler) HandleGetMonitoring(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Monitoring())
}

// HandlePutMonitoring handles PUT /monitoring requests.
func (h *MonitoringHandler) HandlePutMonitoring(w http.ResponseWriter, r *http.Request) {
	var req monitoringRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing enabled", ErrBadRequest))
		return
	}
	state, err := h.deps.SetMonitoring(r.Context(), *req.Enabled, req.VehicleClass)
	if err != nil {
		if errors.Is(err, types.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "invalid_vehicle_class", err)
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

package api

import (
	"context"
	"net/http"

	"github.com/logtech/roadsafe/internal/domain/fatigue"
)

// FatigueAnalyzer grades eye landmarks.
type FatigueAnalyzer interface {
	Fatigue(ctx context.Context, left, right []fatigue.Point) (fatigue.Report, error)
}

// FatigueHandler handles fatigue frames from the camera adapter.
type FatigueHandler struct {
	deps FatigueAnalyzer
}

// NewFatigueHandler creates a new fatigue handler.
func NewFatigueHandler(deps FatigueAnalyzer) *FatigueHandler {
	return &FatigueHandler{deps: deps}
}

type fatigueRequest struct {
	LeftEye  []fatigue.Point `json:"left_eye"`
	RightEye []fatigue.Point `json:"right_eye"`
}

// HandlePostFatigue handles POST /fatigue requests.
func (h *FatigueHandler) HandlePostFatigue(w http.ResponseWriter, r *http.Request) {
	var req fatigueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	report, err := h.deps.Fatigue(r.Context(), req.LeftEye, req.RightEye)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

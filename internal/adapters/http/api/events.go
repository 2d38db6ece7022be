package api

import (
	"context"
	"net/http"

	"github.com/logtech/roadsafe/internal/domain/model"
)

// EventLog exposes the stored events and their appeal workflow.
type EventLog interface {
	Events(ctx context.Context, includeMarkers bool) ([]model.RoadEvent, error)
	Appeal(ctx context.Context, id int64, statement string) (model.RoadEvent, error)
	Review(ctx context.Context, id int64, decision string) (model.RoadEvent, error)
	Verify(ctx context.Context, id int64) (bool, error)
}

// EventsHandler handles event listing and appeals.
type EventsHandler struct {
	deps EventLog
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventLog) *EventsHandler {
	return &EventsHandler{deps: deps}
}

type appealRequest struct {
	Statement string `json:"statement"`
}

type reviewRequest struct {
	Decision string `json:"decision"`
}

type verifyResponse struct {
	ID    int64 `json:"id"`
	Valid bool  `json:"valid"`
}

// HandleListEvents handles GET /events requests.
func (h *EventsHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	includeMarkers, err := queryBool(r, "include_markers")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	events, err := h.deps.Events(r.Context(), includeMarkers)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if events == nil {
		events = []model.RoadEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleAppeal handles POST /events/{id}/appeal requests.
func (h *EventsHandler) HandleAppeal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req appealRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	ev, err := h.deps.Appeal(r.Context(), id, req.Statement)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// HandleReview handles POST /events/{id}/review requests.
func (h *EventsHandler) HandleReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	ev, err := h.deps.Review(r.Context(), id, req.Decision)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// HandleVerify handles GET /events/{id}/verify requests.
func (h *EventsHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	valid, err := h.deps.Verify(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{ID: id, Valid: valid})
}

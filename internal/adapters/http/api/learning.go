package api

import (
	"context"
	"net/http"

	"github.com/logtech/roadsafe/internal/domain/model"
)

// LearningRecorder stores completed micro-learning topics.
type LearningRecorder interface {
	AddLearning(ctx context.Context, topicID, personID string) (model.LearningRecord, error)
}

// LearningHandler handles learning completions.
type LearningHandler struct {
	deps LearningRecorder
}

// NewLearningHandler creates a new learning handler.
func NewLearningHandler(deps LearningRecorder) *LearningHandler {
	return &LearningHandler{deps: deps}
}

type learningRequest struct {
	TopicID  string `json:"topic_id"`
	PersonID string `json:"person_id"`
}

// HandlePostLearning handles POST /learning requests.
func (h *LearningHandler) HandlePostLearning(w http.ResponseWriter, r *http.Request) {
	var req learningRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	rec, err := h.deps.AddLearning(r.Context(), req.TopicID, req.PersonID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/logtech/roadsafe/internal/adapters/mq/queue"
	"github.com/logtech/roadsafe/internal/adapters/repository"
	"github.com/logtech/roadsafe/internal/domain/appeal"
	"github.com/logtech/roadsafe/internal/domain/types"
	"github.com/logtech/roadsafe/pkg/metrics"
)

// Service is everything the handlers need from the application layer.
type Service interface {
	SampleIngester
	MonitoringController
	FatigueAnalyzer
	EventLog
	LearningRecorder
	Reporter
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	samplesHandler    *SamplesHandler
	monitoringHandler *MonitoringHandler
	fatigueHandler    *FatigueHandler
	eventsHandler     *EventsHandler
	learningHandler   *LearningHandler
	reportHandler     *ReportHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(svc Service) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(svc),
		samplesHandler:    NewSamplesHandler(svc),
		monitoringHandler: NewMonitoringHandler(svc),
		fatigueHandler:    NewFatigueHandler(svc),
		eventsHandler:     NewEventsHandler(svc),
		learningHandler:   NewLearningHandler(svc),
		reportHandler:     NewReportHandler(svc),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /samples", MetricsMiddleware(s.samplesHandler.HandlePostSamples, "samples"))
	mux.HandleFunc("GET /monitoring", MetricsMiddleware(s.monitoringHandler.HandleGetMonitoring, "monitoring"))
	mux.HandleFunc("PUT /monitoring", MetricsMiddleware(s.monitoringHandler.HandlePutMonitoring, "monitoring"))
	mux.HandleFunc("POST /fatigue", MetricsMiddleware(s.fatigueHandler.HandlePostFatigue, "fatigue"))

	mux.HandleFunc("GET /events", MetricsMiddleware(s.eventsHandler.HandleListEvents, "events"))
	mux.HandleFunc("POST /events/{id}/appeal", MetricsMiddleware(s.eventsHandler.HandleAppeal, "appeal"))
	mux.HandleFunc("POST /events/{id}/review", MetricsMiddleware(s.eventsHandler.HandleReview, "review"))
	mux.HandleFunc("GET /events/{id}/verify", MetricsMiddleware(s.eventsHandler.HandleVerify, "verify"))

	mux.HandleFunc("POST /learning", MetricsMiddleware(s.learningHandler.HandlePostLearning, "learning"))
	mux.HandleFunc("GET /report", MetricsMiddleware(s.reportHandler.HandleReport, "report"))
	mux.HandleFunc("GET /report/certificate", MetricsMiddleware(s.reportHandler.HandleCertificate, "certificate"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v before committing the status, so a value that cannot be
// encoded becomes a well-formed 500 instead of a truncated body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		metrics.RecordError("http", "encode")
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(errorResponse{Code: "internal", Message: "response encoding failed"})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		metrics.RecordError("http", "write")
	}
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates domain and store errors into HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, appeal.ErrEmptyStatement):
		return http.StatusBadRequest, "empty_statement"
	case errors.Is(err, appeal.ErrInvalidDecision):
		return http.StatusBadRequest, "invalid_decision"
	case errors.Is(err, types.ErrInvalidInput), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, appeal.ErrNotAppealable):
		return http.StatusConflict, "not_appealable"
	case errors.Is(err, appeal.ErrTerminalState):
		return http.StatusConflict, "appeal_resolved"
	case errors.Is(err, appeal.ErrAlreadyAppealed),
		errors.Is(err, appeal.ErrNotAppealed),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, types.ErrNotRunning),
		errors.Is(err, queue.ErrClosed),
		errors.Is(err, repository.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

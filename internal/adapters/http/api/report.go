package api

import (
	"context"
	"io"
	"net/http"

	"github.com/logtech/roadsafe/internal/domain/model"
)

// Reporter derives the safety report and certificate.
type Reporter interface {
	Report(ctx context.Context) (model.SafetyReport, error)
	Certificate(ctx context.Context) (string, error)
}

// ReportHandler handles report requests.
type ReportHandler struct {
	deps Reporter
}

// NewReportHandler creates a new report handler.
func NewReportHandler(deps Reporter) *ReportHandler {
	return &ReportHandler{deps: deps}
}

// HandleReport handles GET /report requests.
func (h *ReportHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.Report(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleCertificate handles GET /report/certificate requests.
func (h *ReportHandler) HandleCertificate(w http.ResponseWriter, r *http.Request) {
	cert, err := h.deps.Certificate(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, cert)
}

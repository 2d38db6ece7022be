package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/logtech/roadsafe/internal/domain/classifier"
	"github.com/logtech/roadsafe/internal/domain/model"
	"github.com/logtech/roadsafe/internal/domain/types"
)

// SampleIngester accepts sensor batches.
type SampleIngester interface {
	Ingest(ctx context.Context, batchID string, samples []model.MotionSample) (types.IngestResult, error)
}

// SamplesHandler handles sample submissions.
type SamplesHandler struct {
	deps SampleIngester
}

// NewSamplesHandler creates a new samples handler.
func NewSamplesHandler(deps SampleIngester) *SamplesHandler {
	return &SamplesHandler{deps: deps}
}

// axisValue decodes any JSON value into a float. Numbers and numeric strings
// are kept; anything else reads as 0 so a malformed reading never rejects the
// batch.
type axisValue float64

func (v *axisValue) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*v = axisValue(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*v = axisValue(f)
			return nil
		}
	}
	*v = 0
	return nil
}

type sampleRequest struct {
	X           axisValue   `json:"x"`
	Y           axisValue   `json:"y"`
	Z           axisValue   `json:"z"`
	AudioEnergy *axisValue  `json:"audio_energy,omitempty"`
	AudioFrame  []axisValue `json:"audio_frame,omitempty"` // raw PCM, used when audio_energy is absent
	TS          axisValue   `json:"ts,omitempty"`          // epoch millis
}

func (s sampleRequest) toModel() model.MotionSample {
	out := model.MotionSample{
		AccX: float64(s.X),
		AccY: float64(s.Y),
		AccZ: float64(s.Z),
	}
	switch {
	case s.AudioEnergy != nil:
		e := float64(*s.AudioEnergy)
		out.AudioEnergy = &e
	case len(s.AudioFrame) > 0:
		pcm := make([]float64, len(s.AudioFrame))
		for i, v := range s.AudioFrame {
			pcm[i] = float64(v)
		}
		e := classifier.FrameEnergy(pcm)
		out.AudioEnergy = &e
	}
	if s.TS > 0 {
		out.At = time.UnixMilli(int64(s.TS))
	}
	return out
}

type samplesRequest struct {
	BatchID string          `json:"batch_id"`
	Samples []sampleRequest `json:"samples"`
}

// HandlePostSamples handles POST /samples requests.
func (h *SamplesHandler) HandlePostSamples(w http.ResponseWriter, r *http.Request) {
	var req samplesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	samples := make([]model.MotionSample, len(req.Samples))
	for i, s := range req.Samples {
		samples[i] = s.toModel()
	}
	res, err := h.deps.Ingest(r.Context(), req.BatchID, samples)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

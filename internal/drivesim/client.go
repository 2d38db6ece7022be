package drivesim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/logtech/roadsafe/internal/domain/model"
	"github.com/logtech/roadsafe/internal/domain/types"
)

// Client talks to the service HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client with the given per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, http.StatusOK, nil)
}

// SetMonitoring switches monitoring via PUT /monitoring.
func (c *Client) SetMonitoring(ctx context.Context, enabled bool, vehicle string) (types.MonitoringState, error) {
	var out types.MonitoringState
	body := map[string]any{"enabled": enabled, "vehicle_class": vehicle}
	err := c.do(ctx, http.MethodPut, "/monitoring", body, http.StatusOK, &out)
	return out, err
}

// Submit posts one batch of samples.
func (c *Client) Submit(ctx context.Context, batchID string, samples []Sample) (types.IngestResult, error) {
	var out types.IngestResult
	body := map[string]any{"batch_id": batchID, "samples": samples}
	err := c.do(ctx, http.MethodPost, "/samples", body, http.StatusAccepted, &out)
	return out, err
}

// AddLearning records a completed learning topic.
func (c *Client) AddLearning(ctx context.Context, topic, person string) (model.LearningRecord, error) {
	var out model.LearningRecord
	body := map[string]string{"topic_id": topic, "person_id": person}
	err := c.do(ctx, http.MethodPost, "/learning", body, http.StatusCreated, &out)
	return out, err
}

// Events lists stored events without clean-window markers.
func (c *Client) Events(ctx context.Context) ([]model.RoadEvent, error) {
	var out []model.RoadEvent
	err := c.do(ctx, http.MethodGet, "/events", nil, http.StatusOK, &out)
	return out, err
}

// Report fetches the current safety report.
func (c *Client) Report(ctx context.Context) (model.SafetyReport, error) {
	var out model.SafetyReport
	err := c.do(ctx, http.MethodGet, "/report", nil, http.StatusOK, &out)
	return out, err
}

// Stats fetches the pipeline counters.
func (c *Client) Stats(ctx context.Context) (types.Stats, error) {
	var out types.Stats
	err := c.do(ctx, http.MethodGet, "/stats", nil, http.StatusOK, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUnexpectedStatus, method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

package drivesim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/logtech/roadsafe/internal/domain/model"
	"github.com/logtech/roadsafe/pkg/logger"
)

// Run executes the simulated drive against cfg.BaseURL and verifies the
// outcome.
func Run(ctx context.Context, cfg *Config) (*Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	client := NewClient(cfg.BaseURL, cfg.Timeout)
	out := &Outcome{StartTime: time.Now()}

	log.Info(ctx, "starting simulated drive",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("samples", cfg.Samples),
		logger.Int("brakes", cfg.Brakes),
		logger.String("vehicle", cfg.Vehicle),
		logger.Int("learning", cfg.Learning))

	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	baseline, err := snapshot(ctx, client)
	if err != nil {
		return nil, err
	}
	out.Baseline = baseline.report

	if _, err := client.SetMonitoring(ctx, true, cfg.Vehicle); err != nil {
		return nil, fmt.Errorf("enable monitoring: %w", err)
	}

	if err := submit(ctx, client, cfg, out); err != nil {
		return nil, err
	}
	if err := waitProcessed(ctx, client, baseline.processed+int64(out.Accepted), cfg.Wait); err != nil {
		return nil, err
	}

	person := cfg.Driver
	if person == "" {
		person = "driver-" + uuid.NewString()
	}
	for i := 0; i < cfg.Learning; i++ {
		if _, err := client.AddLearning(ctx, fmt.Sprintf("topic-%d", i+1), person); err != nil {
			return nil, fmt.Errorf("add learning record: %w", err)
		}
	}

	after, err := snapshot(ctx, client)
	if err != nil {
		return nil, err
	}
	out.Report = after.report
	out.HarshBraking = after.harshBraking - baseline.harshBraking
	out.Duration = time.Since(out.StartTime)

	if err := Verify(cfg, out); err != nil {
		return out, err
	}
	log.Info(ctx, "drive verified",
		logger.Int("batches", out.Batches),
		logger.Int("accepted", out.Accepted),
		logger.Int("harshBraking", out.HarshBraking),
		logger.Int("safetyIndex", out.Report.SafetyIndex),
		logger.Float64("discount", out.Report.ProjectedDiscount),
		logger.Int("tokens", out.Report.TokenBalance),
		logger.Duration("duration", out.Duration))
	return out, nil
}

type serverState struct {
	report       model.SafetyReport
	harshBraking int
	processed    int64
}

func snapshot(ctx context.Context, client *Client) (serverState, error) {
	var st serverState
	events, err := client.Events(ctx)
	if err != nil {
		return st, fmt.Errorf("list events: %w", err)
	}
	for _, ev := range events {
		if ev.Kind == model.KindHarshBraking {
			st.harshBraking++
		}
	}
	if st.report, err = client.Report(ctx); err != nil {
		return st, fmt.Errorf("fetch report: %w", err)
	}
	stats, err := client.Stats(ctx)
	if err != nil {
		return st, fmt.Errorf("fetch stats: %w", err)
	}
	st.processed = stats.Processed
	return st, nil
}

func submit(ctx context.Context, client *Client, cfg *Config, out *Outcome) error {
	samples := Generate(cfg.Samples, cfg.Brakes, out.StartTime)
	for _, batch := range Batches(samples, cfg.BatchSize) {
		res, err := client.Submit(ctx, uuid.NewString(), batch)
		if err != nil {
			return fmt.Errorf("submit batch %d: %w", out.Batches+1, err)
		}
		out.Batches++
		out.Accepted += res.Accepted
		out.Dropped += res.Dropped
		if res.Duplicate {
			out.Duplicates++
		}
	}
	return nil
}

// waitProcessed polls /stats until the worker has consumed target samples.
func waitProcessed(ctx context.Context, client *Client, target int64, wait time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		stats, err := client.Stats(ctx)
		if err == nil && stats.Processed >= target {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d processed samples: %w", target, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Package drivesim generates a synthetic drive, submits it to a running
// service and verifies the resulting events and safety report.
package drivesim

import (
	"fmt"
	"time"

	"github.com/logtech/roadsafe/internal/domain/model"
	"github.com/logtech/roadsafe/pkg/logger"
)

// Defaults for a simulated drive.
const (
	DefaultSamples   = 100
	DefaultBrakes    = 3
	DefaultLearning  = 2
	DefaultBatchSize = 50
	DefaultTimeout   = 10 * time.Second
	DefaultWait      = 30 * time.Second

	sampleInterval = 20 * time.Millisecond
	pollInterval   = 100 * time.Millisecond
)

// Config describes one simulated drive.
type Config struct {
	BaseURL   string        // service base URL
	Samples   int           // total samples in the drive
	Brakes    int           // samples that cross the harsh braking limit
	Vehicle   string        // vehicle class sent with the monitoring switch
	Learning  int           // completed learning records to add
	Driver    string        // person id for learning records
	BatchSize int           // samples per POST /samples
	Timeout   time.Duration // per-request timeout
	Wait      time.Duration // how long to wait for the worker to catch up

	Logger logger.Logger
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: url must not be empty", ErrInvalidConfig)
	case c.Samples <= 0:
		return fmt.Errorf("%w: samples must be positive", ErrInvalidConfig)
	case c.Brakes < 0 || c.Brakes > c.Samples:
		return fmt.Errorf("%w: brakes must be between 0 and samples", ErrInvalidConfig)
	case c.Learning < 0:
		return fmt.Errorf("%w: learning must not be negative", ErrInvalidConfig)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	if _, err := model.ParseVehicleClass(c.Vehicle); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Sample is the wire form of one accelerometer reading.
type Sample struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	TS int64   `json:"ts"`
}

// Outcome collects what the drive produced on the server.
type Outcome struct {
	Batches    int
	Accepted   int
	Dropped    int
	Duplicates int

	HarshBraking int // harsh braking events added by this drive
	Baseline     model.SafetyReport
	Report       model.SafetyReport

	StartTime time.Time
	Duration  time.Duration
}

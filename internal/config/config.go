// Package config defines service configuration and its layered loading.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/logtech/roadsafe/internal/domain/model"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the sample queue; samples beyond it are dropped.
	QueueSize int `koanf:"queue_size"`
	// DedupeSize bounds the number of remembered batch ids.
	DedupeSize int `koanf:"dedupe_size"`

	// StoreDriver is memory or sqlite.
	StoreDriver string `koanf:"store_driver"`
	SQLitePath  string `koanf:"sqlite_path"`

	// VehicleClass and MonitoringEnabled seed the monitoring switch.
	VehicleClass      string `koanf:"vehicle_class"`
	MonitoringEnabled bool   `koanf:"monitoring_enabled"`

	// PenaltyWeight is the points removed per critical event (3 or 5 by product).
	PenaltyWeight           int     `koanf:"penalty_weight"`
	BaseDiscount            float64 `koanf:"base_discount"`
	Currency                string  `koanf:"currency"`
	ExcludeValidatedAppeals bool    `koanf:"exclude_validated_appeals"`

	WindowSamples      int `koanf:"window_samples"`
	FallConfirmDelayMS int `koanf:"fall_confirm_delay_ms"`
	AnnounceCooldownMS int `koanf:"announce_cooldown_ms"`

	// StrictAppeals panics on a transition out of a terminal appeal state.
	StrictAppeals bool `koanf:"strict_appeals"`

	// DeviceID identifies this unit on certificates and metrics.
	DeviceID string `koanf:"device_id"`

	// ShutdownTimeoutMS bounds the graceful shutdown.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`
}

// New creates a Config with defaults. Context is accepted first to follow
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		QueueSize:          4096,
		DedupeSize:         4096,
		StoreDriver:        StoreMemory,
		SQLitePath:         "roadsafe.db",
		VehicleClass:       string(model.VehicleTruck),
		MonitoringEnabled:  false,
		PenaltyWeight:      5,
		BaseDiscount:       500,
		Currency:           "PEN",
		WindowSamples:      60,
		FallConfirmDelayMS: 2000,
		AnnounceCooldownMS: 8000,
		DeviceID:           uuid.NewString(),
		ShutdownTimeoutMS:  5000,
	}
}

// Validate reports the first invalid setting wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.PenaltyWeight <= 0:
		return fmt.Errorf("%w: penalty_weight must be positive", ErrInvalidConfig)
	case c.BaseDiscount < 0:
		return fmt.Errorf("%w: base_discount must not be negative", ErrInvalidConfig)
	case c.WindowSamples <= 0:
		return fmt.Errorf("%w: window_samples must be positive", ErrInvalidConfig)
	case c.FallConfirmDelayMS <= 0:
		return fmt.Errorf("%w: fall_confirm_delay_ms must be positive", ErrInvalidConfig)
	case c.AnnounceCooldownMS < 0:
		return fmt.Errorf("%w: announce_cooldown_ms must not be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(c.StoreDriver) {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path required for the sqlite store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if _, err := model.ParseVehicleClass(c.VehicleClass); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Vehicle returns the parsed vehicle class. Call after Validate.
func (c *Config) Vehicle() model.VehicleClass {
	v, err := model.ParseVehicleClass(c.VehicleClass)
	if err != nil {
		return model.VehicleTruck
	}
	return v
}

// FallConfirmDelay returns the fall confirmation delay.
func (c *Config) FallConfirmDelay() time.Duration {
	return time.Duration(c.FallConfirmDelayMS) * time.Millisecond
}

// AnnounceCooldown returns the per-kind announcement cooldown.
func (c *Config) AnnounceCooldown() time.Duration {
	return time.Duration(c.AnnounceCooldownMS) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown bound.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

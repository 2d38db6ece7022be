// Package types contains shapes shared between the service and its adapters.
package types

import (
	"github.com/logtech/roadsafe/internal/domain/classifier"
	"github.com/logtech/roadsafe/internal/domain/model"
)

// MonitoringState is the sensor monitoring switch.
type MonitoringState struct {
	Enabled      bool               `json:"enabled"`
	VehicleClass model.VehicleClass `json:"vehicle_class"`
}

// Context returns the classification context for samples received now.
func (m MonitoringState) Context() classifier.Context {
	return classifier.Context{VehicleClass: m.VehicleClass, MonitoringEnabled: m.Enabled}
}

// IngestResult reports what happened to a submitted batch.
type IngestResult struct {
	Accepted  int  `json:"accepted"`
	Dropped   int  `json:"dropped"`
	Duplicate bool `json:"duplicate"`
}

// Total returns the number of samples in the batch.
func (r IngestResult) Total() int { return r.Accepted + r.Dropped }

// Stats is the service overview served by the stats endpoint.
type Stats struct {
	Monitoring    MonitoringState `json:"monitoring"`
	QueueLen      int             `json:"queue_len"`
	QueueCap      int             `json:"queue_cap"`
	Processed     int64           `json:"processed"`
	Persisted     int64           `json:"persisted"`
	Failed        int64           `json:"failed"`
	StoredEvents  int             `json:"stored_events"`
	PendingFall   bool            `json:"pending_fall"`
	SeenBatches   int64           `json:"seen_batches"`
	StoreDriver   string          `json:"store_driver"`
	UptimeSeconds float64         `json:"uptime_seconds"`
}

// Package repository defines the event log boundary and its implementations.
package repository

import (
	"context"
	"time"

	"github.com/logtech/roadsafe/internal/domain/model"
	"github.com/logtech/roadsafe/pkg/metrics"
)

// Store is the append-only event log plus the learning log. Events are never
// deleted; only their appeal fields change.
type Store interface {
	// Append persists ev and returns the assigned id.
	Append(ctx context.Context, ev model.RoadEvent) (int64, error)
	// QueryAll returns a consistent snapshot of every event in insertion order.
	QueryAll(ctx context.Context) ([]model.RoadEvent, error)
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id int64) (model.RoadEvent, error)
	// UpdateAppeal stores the statement and hash and moves the event to
	// appealed. Returns ErrConflict unless the event is unappealed.
	UpdateAppeal(ctx context.Context, id int64, statement, hash string) error
	// UpdateStatus resolves an appeal. Returns ErrConflict unless the event is
	// appealed and status is terminal.
	UpdateStatus(ctx context.Context, id int64, status model.AppealStatus) error

	AppendLearning(ctx context.Context, rec model.LearningRecord) (int64, error)
	ListLearning(ctx context.Context) ([]model.LearningRecord, error)

	// Count returns the number of events.
	Count(ctx context.Context) (int, error)
	Close() error
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

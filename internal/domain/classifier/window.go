package classifier

import (
	"time"

	"github.com/logtech/roadsafe/internal/domain/model"
	"github.com/logtech/roadsafe/pkg/metrics"
)

// DefaultWindowSamples is the number of monitored samples per window.
const DefaultWindowSamples = 60

// WindowTracker groups monitored samples into fixed-size windows and yields a
// CleanWindow marker for each window without penalized events. It is owned by
// a single goroutine and is not safe for concurrent use.
type WindowTracker struct {
	size     int
	seen     int
	critical int
}

// NewWindowTracker creates a tracker closing a window every size samples.
func NewWindowTracker(size int) *WindowTracker {
	if size <= 0 {
		size = DefaultWindowSamples
	}
	return &WindowTracker{size: size}
}

// Observe accounts one classified sample. When the sample closes a clean
// window the marker event is returned with ok set.
func (w *WindowTracker) Observe(at time.Time, detections []Detection) (model.RoadEvent, bool) {
	for _, d := range detections {
		if d.Event.Kind.Penalized() {
			w.critical++
		}
	}
	w.seen++
	if w.seen < w.size {
		return model.RoadEvent{}, false
	}
	clean := w.critical == 0
	w.seen, w.critical = 0, 0
	if !clean {
		return model.RoadEvent{}, false
	}
	metrics.RecordCleanWindow()
	return model.NewRoadEvent(model.KindCleanWindow, 0, at), true
}

// RecordCritical attributes events that arrived outside Observe, such as
// confirmed falls, to the open window.
func (w *WindowTracker) RecordCritical(n int) {
	if n > 0 {
		w.critical += n
	}
}

// Reset drops the partially filled window.
func (w *WindowTracker) Reset() {
	w.seen, w.critical = 0, 0
}

// Size returns the window length in samples.
func (w *WindowTracker) Size() int { return w.size }

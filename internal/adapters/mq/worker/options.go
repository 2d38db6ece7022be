package worker

import (
	"github.com/logtech/roadsafe/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithNotifier sets the receiver of persisted events.
func WithNotifier(n Notifier) Option {
	return func(w *InMemoryWorker) {
		if n != nil {
			w.notifier = n
		}
	}
}

// WithWindowSamples sets the clean-window length in samples.
func WithWindowSamples(n int) Option {
	return func(w *InMemoryWorker) {
		if n > 0 {
			w.windowSamples = n
		}
	}
}

// WithAsyncBuffer sets how many out-of-band detections may wait for the worker.
func WithAsyncBuffer(n int) Option {
	return func(w *InMemoryWorker) {
		if n > 0 {
			w.asyncBuffer = n
		}
	}
}

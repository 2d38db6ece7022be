// Package worker runs the single classification consumer: it classifies
// queued samples, persists detections and hands them to the notifier.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/logtech/roadsafe/internal/adapters/mq/queue"
	"github.com/logtech/roadsafe/internal/adapters/notify"
	"github.com/logtech/roadsafe/internal/domain/classifier"
	"github.com/logtech/roadsafe/internal/domain/model"
	"github.com/logtech/roadsafe/pkg/logger"
	"github.com/logtech/roadsafe/pkg/metrics"
)

const defaultAsyncBuffer = 8

// Classifier turns a sample into detections.
type Classifier interface {
	Classify(sample model.MotionSample, ctx classifier.Context) []classifier.Detection
}

// Appender persists events.
type Appender interface {
	Append(ctx context.Context, ev model.RoadEvent) (int64, error)
}

// Notifier receives every persisted detection.
type Notifier interface {
	Notify(ctx context.Context, ev model.RoadEvent, alertWorthy bool) error
}

// Queue defines how workers receive samples.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Item
}

// Worker processes samples until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown waits for Run to drain a closed queue. When ctx expires first
	// the remaining items are abandoned.
	Shutdown(ctx context.Context) error
}

// Stats is a snapshot of worker counters.
type Stats struct {
	Processed int64 `json:"processed"`
	Persisted int64 `json:"persisted"`
	Failed    int64 `json:"failed"`
}

// InMemoryWorker is the only writer of classified events. Detections raised
// outside the sample stream (confirmed falls fired on timer goroutines,
// fatigue reports) are funnelled to it through ReportDetection.
type InMemoryWorker struct {
	queue      Queue
	classifier Classifier
	store      Appender
	notifier   Notifier
	name       string

	windowSamples int
	window        *classifier.WindowTracker
	asyncBuffer   int
	async         chan classifier.Detection

	processed atomic.Int64
	persisted atomic.Int64
	failed    atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, c Classifier, store Appender, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:         q,
		classifier:    c,
		store:         store,
		notifier:      notify.NopNotifier{},
		name:          "worker",
		windowSamples: classifier.DefaultWindowSamples,
		asyncBuffer:   defaultAsyncBuffer,
		shutdown:      make(chan struct{}),
		done:          make(chan struct{}),
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	w.window = classifier.NewWindowTracker(w.windowSamples)
	w.async = make(chan classifier.Detection, w.asyncBuffer)
	return w
}

// ReportDetection queues an out-of-band detection for persistence. It is the
// classifier's fall sink and never blocks past worker shutdown.
func (w *InMemoryWorker) ReportDetection(d classifier.Detection) {
	select {
	case w.async <- d:
	case <-w.shutdown:
		metrics.RecordError("worker", "report_after_shutdown")
	case <-w.done:
		metrics.RecordError("worker", "report_after_shutdown")
	}
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case d := <-w.async:
			w.handleAsync(ctx, d)
		case it, ok := <-items:
			if !ok {
				w.drainAsync(ctx)
				return
			}
			w.process(ctx, it)
		}
	}
}

// Shutdown waits for the worker to finish.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.shutdownOnce.Do(func() { close(w.shutdown) })
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Stats returns the worker counters.
func (w *InMemoryWorker) Stats() Stats {
	return Stats{
		Processed: w.processed.Load(),
		Persisted: w.persisted.Load(),
		Failed:    w.failed.Load(),
	}
}

func (w *InMemoryWorker) process(ctx context.Context, it queue.Item) { //nolint:gocritic // hugeParam: Item comes by value off the channel
	defer w.processed.Add(1)
	detections := w.classifier.Classify(it.Sample, it.Context)
	if !it.Context.MonitoringEnabled {
		w.window.Reset()
		metrics.RecordSampleIgnored()
		return
	}
	for _, d := range detections {
		w.persist(ctx, d)
	}

	at := it.Sample.At
	if at.IsZero() {
		at = it.ReceivedAt
	}
	if marker, ok := w.window.Observe(at, detections); ok {
		w.persist(ctx, classifier.Detection{Event: marker})
	}
}

func (w *InMemoryWorker) handleAsync(ctx context.Context, d classifier.Detection) {
	if d.Event.Kind.Penalized() {
		w.window.RecordCritical(1)
	}
	w.persist(ctx, d)
}

func (w *InMemoryWorker) drainAsync(ctx context.Context) {
	for {
		select {
		case d := <-w.async:
			w.handleAsync(ctx, d)
		default:
			return
		}
	}
}

func (w *InMemoryWorker) persist(ctx context.Context, d classifier.Detection) {
	id, err := w.store.Append(ctx, d.Event)
	if err != nil {
		w.failed.Add(1)
		metrics.RecordError("worker", "store")
		w.logger.Error(ctx, "failed to persist event",
			logger.String("kind", string(d.Event.Kind)),
			logger.Error(err))
		return
	}
	d.Event.ID = id
	w.persisted.Add(1)
	metrics.RecordEventClassified(string(d.Event.Kind), d.AlertWorthy)
	w.logger.Debug(ctx, "event persisted",
		logger.Int64("id", id),
		logger.String("kind", string(d.Event.Kind)),
		logger.Float64("intensity", d.Event.Intensity),
		logger.Bool("alert", d.AlertWorthy))

	if d.Event.Kind.Marker() {
		return
	}
	if err := w.notifier.Notify(ctx, d.Event, d.AlertWorthy); err != nil {
		metrics.RecordError("worker", "notify")
		w.logger.Warn(ctx, "notification failed",
			logger.Int64("id", id),
			logger.Error(err))
	}
}

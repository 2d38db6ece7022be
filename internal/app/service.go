// Package service wires the classifier, queue, worker, store and scoring
// engine into the operations exposed by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	eventqueue "github.com/logtech/roadsafe/internal/adapters/mq/queue"
	"github.com/logtech/roadsafe/internal/adapters/mq/worker"
	"github.com/logtech/roadsafe/internal/adapters/notify"
	"github.com/logtech/roadsafe/internal/adapters/repository"
	"github.com/logtech/roadsafe/internal/domain/appeal"
	"github.com/logtech/roadsafe/internal/domain/classifier"
	"github.com/logtech/roadsafe/internal/domain/dedupe"
	"github.com/logtech/roadsafe/internal/domain/fatigue"
	"github.com/logtech/roadsafe/internal/domain/model"
	"github.com/logtech/roadsafe/internal/domain/scoring"
	"github.com/logtech/roadsafe/internal/domain/types"
	"github.com/logtech/roadsafe/pkg/logger"
	"github.com/logtech/roadsafe/pkg/metrics"
)

// Defaults used when no option overrides them.
const (
	DefaultQueueSize       = eventqueue.DefaultCapacity
	DefaultDedupeSize      = dedupe.DefaultMaxSize
	DefaultShutdownTimeout = 5 * time.Second
	DefaultAnnounceCool    = 8 * time.Second
)

// Service owns the processing pipeline and answers API requests.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	queue      *eventqueue.InMemoryQueue
	classifier *classifier.Classifier
	worker     *worker.InMemoryWorker
	engine     *scoring.Engine
	appeals    *appeal.Machine
	speaker    notify.Speaker

	// Configuration
	storeDriver      string
	queueSize        int
	dedupeSize       int
	windowSamples    int
	thresholds       classifier.Thresholds
	fallDelay        time.Duration
	announceCooldown time.Duration
	shutdownTimeout  time.Duration
	scoringOpts      []scoring.Option
	strictAppeals    bool
	deviceID         string
	clock            classifier.Clock
	scheduler        classifier.Scheduler

	// State
	monitoring types.MonitoringState
	started    bool
	ownsStore  bool
	startedAt  time.Time
	cancelRun  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. Components are created on Start.
func New(opts ...Option) *Service {
	s := &Service{
		storeDriver:      "memory",
		queueSize:        DefaultQueueSize,
		dedupeSize:       DefaultDedupeSize,
		windowSamples:    classifier.DefaultWindowSamples,
		thresholds:       classifier.DefaultThresholds(),
		fallDelay:        classifier.DefaultFallDelay,
		announceCooldown: DefaultAnnounceCool,
		shutdownTimeout:  DefaultShutdownTimeout,
		deviceID:         "unknown-device",
		clock:            classifier.RealClock{},
		scheduler:        classifier.RealScheduler{},
		monitoring:       types.MonitoringState{VehicleClass: model.VehicleTruck},
		logger:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates the pipeline components and starts the worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting roadsafe service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore(ctx, repository.WithLogger(s.logger.Named("store")))
		s.storeDriver = "memory"
		s.ownsStore = true
	}
	if s.speaker == nil {
		s.speaker = notify.NewLogSpeaker(s.logger.Named("speaker"))
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.engine = scoring.NewEngine(s.scoringOpts...)
	s.appeals = appeal.New(appeal.WithStrict(s.strictAppeals))

	// The classifier's fall sink needs the worker and the worker needs the
	// classifier; the closure breaks the cycle.
	var w *worker.InMemoryWorker
	s.classifier = classifier.New(
		classifier.WithThresholds(s.thresholds),
		classifier.WithFallDelay(s.fallDelay),
		classifier.WithClock(s.clock),
		classifier.WithScheduler(s.scheduler),
		classifier.WithLogger(s.logger.Named("classifier")),
		classifier.WithFallSink(func(d classifier.Detection) { w.ReportDetection(d) }),
	)
	s.classifier.SetMonitoring(s.monitoring.Enabled, s.monitoring.VehicleClass)
	announcer := notify.NewAnnouncer(s.speaker,
		notify.WithCooldown(s.announceCooldown),
		notify.WithLogger(s.logger.Named("announcer")),
	)
	w = worker.NewInMemoryWorker(s.queue, s.classifier, s.store,
		worker.WithName("classifier-worker"),
		worker.WithLogger(s.logger),
		worker.WithNotifier(announcer),
		worker.WithWindowSamples(s.windowSamples),
	)
	s.worker = w

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelRun = cancel
	go s.worker.Run(runCtx)

	s.started = true
	s.startedAt = time.Now()
	metrics.UpdateMonitoring(s.monitoring.Enabled)
	s.logger.Info(ctx, "roadsafe service started",
		logger.String("store", s.storeDriver),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("windowSamples", s.windowSamples),
		logger.Bool("monitoring", s.monitoring.Enabled),
		logger.String("vehicle", string(s.monitoring.VehicleClass)),
	)
	return nil
}

// Stop closes the queue, waits for the worker to drain it, cancels pending
// fall confirmations and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping roadsafe service...")

	_ = s.queue.Close()

	sctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	var errs []error
	if err := s.worker.Shutdown(sctx); err != nil {
		errs = append(errs, fmt.Errorf("worker: %w", err))
	}
	s.classifier.Close()
	s.cancelRun()

	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if s.ownsStore {
		// A restart gets a fresh log rather than a closed store.
		s.store = nil
		s.ownsStore = false
	}

	s.started = false
	s.logger.Info(ctx, "roadsafe service stopped")
	return errors.Join(errs...)
}

// Ingest stamps samples with the current monitoring context and queues them
// without blocking. A non-empty batchID makes the submission idempotent.
func (s *Service) Ingest(ctx context.Context, batchID string, samples []model.MotionSample) (types.IngestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return types.IngestResult{}, types.ErrNotRunning
	}
	if len(samples) == 0 {
		return types.IngestResult{}, fmt.Errorf("%w: empty batch", types.ErrInvalidInput)
	}
	batchID = strings.TrimSpace(batchID)
	if batchID != "" && s.deduper.SeenAndRecord(ctx, batchID) {
		metrics.RecordSamplesDuplicate(len(samples))
		s.logger.Debug(ctx, "duplicate batch acknowledged", logger.String("batchID", batchID))
		return types.IngestResult{Duplicate: true}, nil
	}

	var res types.IngestResult
	receivedAt := s.clock.Now()
	sctx := s.monitoring.Context()
	for _, sample := range samples {
		metrics.RecordSampleReceived()
		err := s.queue.Enqueue(ctx, eventqueue.Item{Sample: sample, Context: sctx, ReceivedAt: receivedAt})
		switch {
		case err == nil:
			res.Accepted++
		case errors.Is(err, eventqueue.ErrFull):
			res.Dropped++
			metrics.RecordSampleDropped()
		default:
			if batchID != "" && res.Accepted == 0 {
				s.deduper.Unrecord(ctx, batchID)
			}
			return res, fmt.Errorf("enqueue sample: %w", err)
		}
	}
	if batchID != "" && res.Accepted == 0 {
		// Nothing was queued; let the client retry the same batch.
		s.deduper.Unrecord(ctx, batchID)
	}
	if res.Dropped > 0 {
		s.logger.Warn(ctx, "queue full, samples dropped",
			logger.Int("dropped", res.Dropped),
			logger.Int("accepted", res.Accepted))
	}
	return res, nil
}

// SetMonitoring switches monitoring and the vehicle class for samples
// received from now on. Switching off cancels a pending fall confirmation.
func (s *Service) SetMonitoring(ctx context.Context, enabled bool, vehicle string) (types.MonitoringState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.monitoring
	next.Enabled = enabled
	if strings.TrimSpace(vehicle) != "" {
		vc, err := model.ParseVehicleClass(vehicle)
		if err != nil {
			return s.monitoring, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
		}
		next.VehicleClass = vc
	}
	if s.classifier != nil {
		s.classifier.SetMonitoring(next.Enabled, next.VehicleClass)
	}
	s.monitoring = next
	metrics.UpdateMonitoring(next.Enabled)
	s.logger.Info(ctx, "monitoring updated",
		logger.Bool("enabled", next.Enabled),
		logger.String("vehicle", string(next.VehicleClass)))
	return next, nil
}

// Monitoring returns the current monitoring switch.
func (s *Service) Monitoring() types.MonitoringState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monitoring
}

// Fatigue grades one frame of eye landmarks. A drowsy frame received while
// monitoring is recorded as a Fatigue event.
func (s *Service) Fatigue(ctx context.Context, left, right []fatigue.Point) (fatigue.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return fatigue.Report{}, types.ErrNotRunning
	}
	if err := fatigue.Validate(left, right); err != nil {
		return fatigue.Report{}, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}
	r := fatigue.Analyze(left, right)
	if r.Drowsy && s.monitoring.Enabled {
		ev := model.NewRoadEvent(model.KindFatigue, float64(r.AlertLevel), s.clock.Now())
		s.worker.ReportDetection(classifier.Detection{Event: ev, AlertWorthy: true})
		s.logger.Debug(ctx, "fatigue detected",
			logger.Float64("ear", r.EAR),
			logger.Int("level", r.AlertLevel))
	}
	return r, nil
}

// Events returns the stored events in insertion order, optionally without
// clean-window markers.
func (s *Service) Events(ctx context.Context, includeMarkers bool) ([]model.RoadEvent, error) {
	store, err := s.activeStore()
	if err != nil {
		return nil, err
	}
	all, err := store.QueryAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	if includeMarkers {
		return all, nil
	}
	out := make([]model.RoadEvent, 0, len(all))
	for _, ev := range all {
		if !ev.Kind.Marker() {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Appeal attaches the driver's statement to an event.
func (s *Service) Appeal(ctx context.Context, id int64, statement string) (model.RoadEvent, error) {
	store, err := s.activeStore()
	if err != nil {
		return model.RoadEvent{}, err
	}
	ev, err := store.Get(ctx, id)
	if err != nil {
		return model.RoadEvent{}, err
	}
	updated, err := s.appeals.Submit(ev, statement)
	if err != nil {
		return model.RoadEvent{}, err
	}
	if err := store.UpdateAppeal(ctx, id, updated.VocalDefense, updated.IntegrityHash); err != nil {
		return model.RoadEvent{}, err
	}
	metrics.RecordAppealTransition(string(updated.Status))
	s.logger.Info(ctx, "appeal submitted", logger.Int64("id", id), logger.String("kind", string(ev.Kind)))
	return updated, nil
}

// Review resolves an appealed event as validated or rejected.
func (s *Service) Review(ctx context.Context, id int64, decision string) (model.RoadEvent, error) {
	store, err := s.activeStore()
	if err != nil {
		return model.RoadEvent{}, err
	}
	status, err := model.ParseAppealStatus(decision)
	if err != nil {
		return model.RoadEvent{}, fmt.Errorf("%w: %w", appeal.ErrInvalidDecision, err)
	}
	ev, err := store.Get(ctx, id)
	if err != nil {
		return model.RoadEvent{}, err
	}
	updated, err := s.appeals.Resolve(ev, status)
	if err != nil {
		return model.RoadEvent{}, err
	}
	if err := store.UpdateStatus(ctx, id, updated.Status); err != nil {
		return model.RoadEvent{}, err
	}
	metrics.RecordAppealTransition(string(updated.Status))
	s.logger.Info(ctx, "appeal resolved", logger.Int64("id", id), logger.String("status", string(updated.Status)))
	return updated, nil
}

// Verify recomputes the integrity hash of an appealed event.
func (s *Service) Verify(ctx context.Context, id int64) (bool, error) {
	store, err := s.activeStore()
	if err != nil {
		return false, err
	}
	ev, err := store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return appeal.Verify(ev), nil
}

// AddLearning records a completed micro-learning topic.
func (s *Service) AddLearning(ctx context.Context, topicID, personID string) (model.LearningRecord, error) {
	store, err := s.activeStore()
	if err != nil {
		return model.LearningRecord{}, err
	}
	rec := model.LearningRecord{
		TopicID:     strings.TrimSpace(topicID),
		PersonID:    strings.TrimSpace(personID),
		CompletedAt: s.clock.Now().UTC(),
	}
	if rec.TopicID == "" || rec.PersonID == "" {
		return model.LearningRecord{}, fmt.Errorf("%w: topic_id and person_id are required", types.ErrInvalidInput)
	}
	id, err := store.AppendLearning(ctx, rec)
	if err != nil {
		return model.LearningRecord{}, fmt.Errorf("append learning: %w", err)
	}
	rec.ID = id
	return rec, nil
}

// Report computes the safety report over a snapshot of both logs.
func (s *Service) Report(ctx context.Context) (model.SafetyReport, error) {
	store, err := s.activeStore()
	if err != nil {
		return model.SafetyReport{}, err
	}
	start := time.Now()
	events, err := store.QueryAll(ctx)
	if err != nil {
		return model.SafetyReport{}, fmt.Errorf("query events: %w", err)
	}
	learning, err := store.ListLearning(ctx)
	if err != nil {
		return model.SafetyReport{}, fmt.Errorf("list learning: %w", err)
	}
	r := s.engine.Compute(events, learning)
	metrics.RecordReport(float64(time.Since(start).Microseconds())/1000, r.SafetyIndex, r.TokenBalance)
	return r, nil
}

// Certificate renders the insurance certificate for the current report.
func (s *Service) Certificate(ctx context.Context) (string, error) {
	r, err := s.Report(ctx)
	if err != nil {
		return "", err
	}
	return scoring.RenderCertificate(r, s.clock.Now(), s.deviceID), nil
}

// Stats returns a service overview and refreshes the gauges it reads.
func (s *Service) Stats(ctx context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := types.Stats{
		Monitoring:  s.monitoring,
		QueueCap:    s.queueSize,
		StoreDriver: s.storeDriver,
	}
	if !s.started {
		return st
	}
	ws := s.worker.Stats()
	st.QueueLen = s.queue.Len(ctx)
	st.Processed = ws.Processed
	st.Persisted = ws.Persisted
	st.Failed = ws.Failed
	st.PendingFall = s.classifier.PendingFall()
	st.SeenBatches = s.deduper.Size()
	st.UptimeSeconds = time.Since(s.startedAt).Seconds()
	if n, err := s.store.Count(ctx); err == nil {
		st.StoredEvents = n
		metrics.UpdateStoredEvents(n)
	} else {
		s.logger.Warn(ctx, "count events failed", logger.Error(err))
	}
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	return st
}

func (s *Service) activeStore() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, types.ErrNotRunning
	}
	return s.store, nil
}

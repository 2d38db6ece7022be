package repository

import (
	"context"
	"sync"
	"time"

	"github.com/logtech/roadsafe/internal/domain/model"
	"github.com/logtech/roadsafe/pkg/metrics"
)

// MemoryStore keeps the logs in slices guarded by a RWMutex. Ids are
// 1-based slice positions.
type MemoryStore struct {
	mu       sync.RWMutex
	events   []model.RoadEvent
	learning []model.LearningRecord
	closed   bool

	reporter *sizeReporter
}

// NewMemoryStore creates an empty in-memory store and starts its metrics
// updater, which stops on Close or when ctx is done.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &MemoryStore{}
	s.reporter = startSizeReporter(ctx, o.metricsInterval, s.Count)
	return s
}

func (s *MemoryStore) Append(_ context.Context, ev model.RoadEvent) (int64, error) {
	defer observe("append", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	ev.ID = int64(len(s.events) + 1)
	if ev.Status == "" {
		ev.Status = model.AppealNone
	}
	s.events = append(s.events, ev)
	return ev.ID, nil
}

func (s *MemoryStore) QueryAll(_ context.Context) ([]model.RoadEvent, error) {
	defer observe("query_all", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.RoadEvent, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (model.RoadEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.index(id)
	if !ok {
		return model.RoadEvent{}, ErrNotFound
	}
	return s.events[idx], nil
}

func (s *MemoryStore) UpdateAppeal(_ context.Context, id int64, statement, hash string) error {
	defer observe("update_appeal", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index(id)
	if !ok {
		return ErrNotFound
	}
	ev := &s.events[idx]
	if ev.Status != model.AppealNone {
		return ErrConflict
	}
	ev.VocalDefense = statement
	ev.IntegrityHash = hash
	ev.Status = model.AppealAppealed
	return nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id int64, status model.AppealStatus) error {
	defer observe("update_status", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index(id)
	if !ok {
		return ErrNotFound
	}
	ev := &s.events[idx]
	if ev.Status != model.AppealAppealed || !status.Terminal() {
		return ErrConflict
	}
	ev.Status = status
	return nil
}

func (s *MemoryStore) AppendLearning(_ context.Context, rec model.LearningRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	rec.ID = int64(len(s.learning) + 1)
	s.learning = append(s.learning, rec)
	return rec.ID, nil
}

func (s *MemoryStore) ListLearning(_ context.Context) ([]model.LearningRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.LearningRecord, len(s.learning))
	copy(out, s.learning)
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}

// Close stops the metrics updater and rejects further appends.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.reporter.stop()
	return nil
}

func (s *MemoryStore) index(id int64) (int, bool) {
	if id < 1 || id > int64(len(s.events)) {
		return 0, false
	}
	return int(id - 1), true
}

// sizeReporter periodically publishes the event count gauge.
type sizeReporter struct {
	wg       sync.WaitGroup
	stopChan chan struct{}
	once     sync.Once
}

func startSizeReporter(ctx context.Context, interval time.Duration, count func(context.Context) (int, error)) *sizeReporter {
	r := &sizeReporter{stopChan: make(chan struct{})}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopChan:
				return
			case <-ticker.C:
				if n, err := count(ctx); err == nil {
					metrics.UpdateStoredEvents(n)
				}
			}
		}
	}()
	return r
}

func (r *sizeReporter) stop() {
	r.once.Do(func() { close(r.stopChan) })
	r.wg.Wait()
}

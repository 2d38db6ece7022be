package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/logtech/roadsafe/internal/adapters/mq/queue"
	worker "github.com/logtech/roadsafe/internal/adapters/mq/worker"
	"github.com/logtech/roadsafe/internal/adapters/repository"
	"github.com/logtech/roadsafe/internal/domain/classifier"
	"github.com/logtech/roadsafe/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.RoadEvent
	alerts []bool
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev model.RoadEvent, alert bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	n.alerts = append(n.alerts, alert)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type failingStore struct{ calls int }

func (s *failingStore) Append(context.Context, model.RoadEvent) (int64, error) {
	s.calls++
	return 0, errors.New("disk full")
}

type manualTimer struct{}

func (manualTimer) Stop() bool { return true }

type manualScheduler struct{}

func (manualScheduler) AfterFunc(time.Duration, func()) classifier.Timer { return manualTimer{} }

var (
	car   = classifier.Context{VehicleClass: model.VehicleCar, MonitoringEnabled: true}
	truck = classifier.Context{VehicleClass: model.VehicleTruck, MonitoringEnabled: true}
)

func enqueue(ctx context.Context, q queue.Queue, c classifier.Context, samples ...model.MotionSample) {
	for _, s := range samples {
		So(q.Enqueue(ctx, queue.Item{Sample: s, Context: c, ReceivedAt: time.Now()}), ShouldBeNil)
	}
}

func runToCompletion(ctx context.Context, w *worker.InMemoryWorker, q queue.Queue) {
	So(q.Close(), ShouldBeNil)
	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	So(w.Shutdown(sctx), ShouldBeNil)
}

func TestInMemoryWorker(t *testing.T) {
	Convey("Given a worker over a memory store", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(256))
		store := repository.NewMemoryStore(ctx)
		defer store.Close()
		notifier := &recordingNotifier{}
		clf := classifier.New(classifier.WithScheduler(manualScheduler{}))
		w := worker.NewInMemoryWorker(q, clf, store, worker.WithNotifier(notifier), worker.WithName("test-worker"))
		go w.Run(ctx)

		Convey("A drive with three harsh brakes stores exactly three events", func() {
			for i := 0; i < 100; i++ {
				s := model.MotionSample{AccY: 9.8}
				if i == 10 || i == 20 || i == 30 {
					s = model.MotionSample{AccZ: 16}
				}
				enqueue(ctx, q, truck, s)
			}
			runToCompletion(ctx, w, q)

			all, err := store.QueryAll(ctx)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 3)
			for _, ev := range all {
				So(ev.Kind, ShouldEqual, model.KindHarshBraking)
				So(ev.Intensity, ShouldEqual, 16)
			}
			So(notifier.count(), ShouldEqual, 3)
			So(w.Stats().Processed, ShouldEqual, 100)
			So(w.Stats().Persisted, ShouldEqual, 3)
		})

		Convey("Samples received with monitoring off are ignored", func() {
			off := classifier.Context{VehicleClass: model.VehicleCar}
			enqueue(ctx, q, off, model.MotionSample{AccZ: 30}, model.MotionSample{AccX: 30})
			runToCompletion(ctx, w, q)

			n, _ := store.Count(ctx)
			So(n, ShouldEqual, 0)
			So(w.Stats().Processed, ShouldEqual, 2)
		})

		Convey("Calm driving yields clean-window markers that are not announced", func() {
			for i := 0; i < 2*classifier.DefaultWindowSamples; i++ {
				enqueue(ctx, q, car, model.MotionSample{AccY: 9.8})
			}
			runToCompletion(ctx, w, q)

			all, _ := store.QueryAll(ctx)
			So(all, ShouldHaveLength, 2)
			So(all[0].Kind, ShouldEqual, model.KindCleanWindow)
			So(notifier.count(), ShouldEqual, 0)
		})

		Convey("Confirmed falls are persisted and announced", func() {
			at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
			w.ReportDetection(classifier.Detection{Event: model.NewRoadEvent(model.KindFallAlert, 26, at), AlertWorthy: true})
			runToCompletion(ctx, w, q)

			all, _ := store.QueryAll(ctx)
			So(all, ShouldHaveLength, 1)
			So(all[0].Kind, ShouldEqual, model.KindFallAlert)
			So(all[0].Timestamp, ShouldEqual, at.UnixMilli())
			So(notifier.alerts, ShouldResemble, []bool{true})
		})

		Convey("Notification failures do not stop the worker", func() {
			notifier.err = errors.New("speaker busy")
			enqueue(ctx, q, car, model.MotionSample{AccX: 13}, model.MotionSample{AccX: -14})
			runToCompletion(ctx, w, q)

			n, _ := store.Count(ctx)
			So(n, ShouldEqual, 2)
		})
	})

	Convey("Given a worker whose store fails", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		store := &failingStore{}
		w := worker.NewInMemoryWorker(q, classifier.New(), store, worker.WithWindowSamples(1000))
		go w.Run(ctx)

		Convey("It keeps consuming and counts failures", func() {
			enqueue(ctx, q, car, model.MotionSample{AccX: 13}, model.MotionSample{AccY: 9.8}, model.MotionSample{AccZ: 16})
			runToCompletion(ctx, w, q)
			So(store.calls, ShouldEqual, 2)
			So(w.Stats().Failed, ShouldEqual, 2)
			So(w.Stats().Processed, ShouldEqual, 3)
		})
	})

	Convey("Given a worker on a queue that never closes", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue()
		w := worker.NewInMemoryWorker(q, classifier.New(), repository.NewMemoryStore(ctx))
		go w.Run(ctx)

		Convey("Shutdown gives up after its deadline and stops the loop", func() {
			sctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			So(w.Shutdown(sctx), ShouldNotBeNil)

			done := make(chan struct{})
			go func() {
				w.ReportDetection(classifier.Detection{})
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				So("ReportDetection blocked after shutdown", ShouldBeEmpty)
			}
		})
	})
}

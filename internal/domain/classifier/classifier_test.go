package classifier

import (
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/logtech/roadsafe/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeTimer struct {
	mu      sync.Mutex
	f       func()
	delay   time.Duration
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fire runs the callback unless the timer was stopped.
func (t *fakeTimer) fire() {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.mu.Unlock()
	t.f()
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{f: f, delay: d}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) last() *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return nil
	}
	return s.timers[len(s.timers)-1]
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var (
	monitoredCar  = Context{VehicleClass: model.VehicleCar, MonitoringEnabled: true}
	monitoredMoto = Context{VehicleClass: model.VehicleMotorcycle, MonitoringEnabled: true}
)

func sample(x, y, z float64) model.MotionSample {
	return model.MotionSample{AccX: x, AccY: y, AccZ: z}
}

func kinds(ds []Detection) []model.EventKind {
	out := make([]model.EventKind, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Event.Kind)
	}
	return out
}

func TestClassifyRules(t *testing.T) {
	Convey("Given a classifier with default thresholds", t, func() {
		now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		c := New(WithClock(fixedClock{t: now}), WithScheduler(&fakeScheduler{}))

		Convey("A resting sample emits nothing", func() {
			So(c.Classify(sample(0, 9.8, 0), monitoredCar), ShouldBeEmpty)
		})

		Convey("A sharp turn is detected with intensity |x|", func() {
			ds := c.Classify(sample(-13, 9.8, 0), monitoredCar)
			So(kinds(ds), ShouldResemble, []model.EventKind{model.KindSharpTurn})
			So(ds[0].Event.Intensity, ShouldEqual, 13)
			So(ds[0].AlertWorthy, ShouldBeTrue)
			So(ds[0].Event.Timestamp, ShouldEqual, now.UnixMilli())
		})

		Convey("Thresholds are strict", func() {
			So(c.Classify(sample(12, 0, 0), monitoredCar), ShouldBeEmpty)
			So(c.Classify(sample(0, 0, 15), monitoredCar), ShouldBeEmpty)
			So(c.Classify(sample(0, 18, 0), monitoredCar), ShouldBeEmpty)
		})

		Convey("Harsh braking is detected with intensity |z|", func() {
			ds := c.Classify(sample(0, 0, -16), monitoredCar)
			So(kinds(ds), ShouldResemble, []model.EventKind{model.KindHarshBraking})
			So(ds[0].Event.Intensity, ShouldEqual, 16)
			So(ds[0].AlertWorthy, ShouldBeTrue)
		})

		Convey("Rules are independent and keep their order", func() {
			ds := c.Classify(sample(13, 0, 16), monitoredCar)
			So(kinds(ds), ShouldResemble, []model.EventKind{
				model.KindSharpTurn, model.KindHarshBraking, model.KindPotholeStrong,
			})
			So(ds[2].Event.Intensity, ShouldAlmostEqual, math.Sqrt(13*13+16*16), 1e-9)
		})

		Convey("A pothole alone is alert-worthy only above intensity 15", func() {
			ds := c.Classify(sample(0, 18.5, 0), monitoredCar)
			So(kinds(ds), ShouldResemble, []model.EventKind{model.KindPotholeStrong})
			So(ds[0].AlertWorthy, ShouldBeTrue)
		})

		Convey("Lean is ignored for cars", func() {
			So(c.Classify(sample(7, 6, 0), monitoredCar), ShouldBeEmpty)
		})

		Convey("Lean beyond 45 degrees is detected for motorcycles", func() {
			ds := c.Classify(sample(7, 6, 0), monitoredMoto)
			So(kinds(ds), ShouldResemble, []model.EventKind{model.KindExcessiveLean})
			So(ds[0].Event.Intensity, ShouldAlmostEqual, math.Atan2(7, 6)*180/math.Pi, 1e-9)
			So(ds[0].AlertWorthy, ShouldBeTrue)
		})

		Convey("Lean needs a minimum magnitude", func() {
			So(c.Classify(sample(3, 1, 0), monitoredMoto), ShouldBeEmpty)
		})

		Convey("Loud audio emits an acoustic impact", func() {
			energy := 1.0
			s := sample(0, 9.8, 0)
			s.AudioEnergy = &energy
			ds := c.Classify(s, monitoredCar)
			So(kinds(ds), ShouldResemble, []model.EventKind{model.KindAcousticImpact})
			So(ds[0].Event.Intensity, ShouldEqual, 100)
			So(ds[0].AlertWorthy, ShouldBeTrue)
		})

		Convey("Quiet audio emits nothing", func() {
			energy := 0.001
			s := sample(0, 9.8, 0)
			s.AudioEnergy = &energy
			So(c.Classify(s, monitoredCar), ShouldBeEmpty)
		})

		Convey("Non-finite input is treated as zero and never panics", func() {
			nan := math.NaN()
			s := model.MotionSample{AccX: math.Inf(1), AccY: nan, AccZ: math.Inf(-1), AudioEnergy: &nan}
			So(func() { c.Classify(s, monitoredMoto) }, ShouldNotPanic)
			So(c.Classify(s, monitoredMoto), ShouldBeEmpty)
		})

		Convey("Huge finite axes yield finite, encodable intensities", func() {
			for _, s := range []model.MotionSample{
				{AccX: 1e200, AccY: 1e200},
				{AccX: 1e308, AccY: 1e308, AccZ: 1e308},
			} {
				ds := c.Classify(s, monitoredCar)
				So(ds, ShouldNotBeEmpty)
				for _, d := range ds {
					So(math.IsInf(d.Event.Intensity, 0), ShouldBeFalse)
					_, err := json.Marshal(d.Event)
					So(err, ShouldBeNil)
				}
			}
			So(sample(1e200, 1e200, 0).Magnitude(), ShouldAlmostEqual, math.Sqrt2*1e200, 1e186)
		})

		Convey("Monitoring off emits nothing", func() {
			So(c.Classify(sample(30, 0, 30), Context{VehicleClass: model.VehicleCar}), ShouldBeEmpty)
		})

		Convey("Sample time is used when present", func() {
			s := sample(13, 0, 0)
			s.At = now.Add(-time.Minute)
			ds := c.Classify(s, monitoredCar)
			So(ds[0].Event.Timestamp, ShouldEqual, now.Add(-time.Minute).UnixMilli())
		})

		Convey("Custom thresholds apply", func() {
			th := DefaultThresholds()
			th.TurnX = 5
			c2 := New(WithThresholds(th), WithScheduler(&fakeScheduler{}))
			So(kinds(c2.Classify(sample(6, 0, 0), monitoredCar)), ShouldResemble, []model.EventKind{model.KindSharpTurn})
		})
	})
}

func TestFallConfirmation(t *testing.T) {
	Convey("Given a motorcycle classifier with a fake scheduler", t, func() {
		sched := &fakeScheduler{}
		var mu sync.Mutex
		var confirmed []Detection
		sink := func(d Detection) {
			mu.Lock()
			defer mu.Unlock()
			confirmed = append(confirmed, d)
		}
		now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		c := New(WithScheduler(sched), WithFallSink(sink), WithClock(fixedClock{t: now}), WithFallDelay(2*time.Second))
		trigger := sample(20, 5, 15)

		Convey("A trigger emits no immediate fall event and arms one timer", func() {
			ds := c.Classify(trigger, monitoredMoto)
			for _, d := range ds {
				So(d.Event.Kind, ShouldNotEqual, model.KindFallAlert)
			}
			So(c.PendingFall(), ShouldBeTrue)
			So(sched.count(), ShouldEqual, 1)
			So(sched.last().delay, ShouldEqual, 2*time.Second)
		})

		Convey("Lateral orientation held through expiry confirms the fall", func() {
			c.Classify(trigger, monitoredMoto)
			c.Classify(sample(9, 2, 0), monitoredMoto)
			sched.last().fire()

			So(c.PendingFall(), ShouldBeFalse)
			So(confirmed, ShouldHaveLength, 1)
			So(confirmed[0].Event.Kind, ShouldEqual, model.KindFallAlert)
			So(confirmed[0].Event.Intensity, ShouldAlmostEqual, trigger.Magnitude(), 1e-9)
			So(confirmed[0].Event.Timestamp, ShouldEqual, now.UnixMilli())
			So(confirmed[0].AlertWorthy, ShouldBeTrue)
		})

		Convey("Returning upright before expiry discards the fall", func() {
			c.Classify(trigger, monitoredMoto)
			c.Classify(sample(1, 9.8, 0), monitoredMoto)
			sched.last().fire()
			So(confirmed, ShouldBeEmpty)
			So(c.PendingFall(), ShouldBeFalse)
		})

		Convey("Switching monitoring off cancels the confirmation", func() {
			c.Classify(trigger, monitoredMoto)
			c.Classify(sample(0, 0, 0), Context{VehicleClass: model.VehicleMotorcycle})
			So(c.PendingFall(), ShouldBeFalse)
			So(sched.last().stopped, ShouldBeTrue)
			sched.last().fire()
			So(confirmed, ShouldBeEmpty)
		})

		Convey("A stale callback is ignored after cancel", func() {
			c.Classify(trigger, monitoredMoto)
			stale := sched.last()
			c.Cancel()
			stale.f()
			So(confirmed, ShouldBeEmpty)
		})

		Convey("A second trigger while pending is ignored", func() {
			c.Classify(trigger, monitoredMoto)
			c.Classify(trigger, monitoredMoto)
			So(sched.count(), ShouldEqual, 1)
			sched.last().fire()
			So(confirmed, ShouldHaveLength, 1)
		})

		Convey("A new trigger after confirmation arms a fresh timer", func() {
			c.Classify(trigger, monitoredMoto)
			sched.last().fire()
			c.Classify(trigger, monitoredMoto)
			So(sched.count(), ShouldEqual, 2)
		})

		Convey("Cars never arm a fall timer", func() {
			c.Classify(trigger, monitoredCar)
			So(sched.count(), ShouldEqual, 0)
		})

		Convey("Turning the live switch off cancels a pending confirmation", func() {
			c.Classify(trigger, monitoredMoto)
			c.SetMonitoring(false, model.VehicleMotorcycle)
			So(c.PendingFall(), ShouldBeFalse)
			So(sched.last().stopped, ShouldBeTrue)
			sched.last().fire()
			So(confirmed, ShouldBeEmpty)
		})

		Convey("A trigger received before the switch went off does not arm", func() {
			c.SetMonitoring(false, model.VehicleMotorcycle)
			c.Classify(trigger, monitoredMoto)
			So(c.PendingFall(), ShouldBeFalse)
			So(sched.count(), ShouldEqual, 0)

			Convey("until monitoring is back on", func() {
				c.SetMonitoring(true, model.VehicleMotorcycle)
				c.Classify(trigger, monitoredMoto)
				So(c.PendingFall(), ShouldBeTrue)
			})
		})

		Convey("Leaving the motorcycle class cancels a pending confirmation", func() {
			c.Classify(trigger, monitoredMoto)
			c.Classify(sample(0, 9.8, 0), monitoredCar)
			So(c.PendingFall(), ShouldBeFalse)
			sched.last().fire()
			So(confirmed, ShouldBeEmpty)
		})

		Convey("Switching the live vehicle class cancels a pending confirmation", func() {
			c.Classify(trigger, monitoredMoto)
			c.SetMonitoring(true, model.VehicleTruck)
			So(c.PendingFall(), ShouldBeFalse)
			sched.last().fire()
			So(confirmed, ShouldBeEmpty)
		})

		Convey("Close stops pending timers and rejects new triggers", func() {
			c.Classify(trigger, monitoredMoto)
			c.Close()
			So(c.PendingFall(), ShouldBeFalse)
			c.Classify(trigger, monitoredMoto)
			So(sched.count(), ShouldEqual, 1)
		})
	})
}

func TestFallConfirmationRealScheduler(t *testing.T) {
	Convey("Given a classifier on the real scheduler", t, func() {
		done := make(chan Detection, 1)
		c := New(WithFallDelay(10*time.Millisecond), WithFallSink(func(d Detection) { done <- d }))
		defer c.Close()

		Convey("A held fall is confirmed asynchronously", func() {
			c.Classify(sample(20, 5, 15), monitoredMoto)
			select {
			case d := <-done:
				So(d.Event.Kind, ShouldEqual, model.KindFallAlert)
			case <-time.After(2 * time.Second):
				So("fall not confirmed", ShouldBeEmpty)
			}
		})
	})
}

func TestWindowTracker(t *testing.T) {
	Convey("Given a window tracker of three samples", t, func() {
		w := NewWindowTracker(3)
		at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		brake := []Detection{{Event: model.NewRoadEvent(model.KindHarshBraking, 16, at)}}
		pothole := []Detection{{Event: model.NewRoadEvent(model.KindPotholeStrong, 19, at)}}

		Convey("A clean window yields one marker on its last sample", func() {
			_, ok := w.Observe(at, nil)
			So(ok, ShouldBeFalse)
			_, ok = w.Observe(at, pothole)
			So(ok, ShouldBeFalse)
			marker, ok := w.Observe(at, nil)
			So(ok, ShouldBeTrue)
			So(marker.Kind, ShouldEqual, model.KindCleanWindow)
			So(marker.Intensity, ShouldEqual, 0)
		})

		Convey("A penalized event spoils the window", func() {
			w.Observe(at, brake)
			w.Observe(at, nil)
			_, ok := w.Observe(at, nil)
			So(ok, ShouldBeFalse)

			Convey("and the next window starts clean", func() {
				w.Observe(at, nil)
				w.Observe(at, nil)
				_, ok := w.Observe(at, nil)
				So(ok, ShouldBeTrue)
			})
		})

		Convey("Asynchronous critical events are attributed to the open window", func() {
			w.Observe(at, nil)
			w.RecordCritical(1)
			w.Observe(at, nil)
			_, ok := w.Observe(at, nil)
			So(ok, ShouldBeFalse)
		})

		Convey("Reset drops the partial window", func() {
			w.Observe(at, brake)
			w.Observe(at, nil)
			w.Reset()
			w.Observe(at, nil)
			w.Observe(at, nil)
			_, ok := w.Observe(at, nil)
			So(ok, ShouldBeTrue)
		})

		Convey("Non-positive sizes fall back to the default", func() {
			So(NewWindowTracker(0).Size(), ShouldEqual, DefaultWindowSamples)
		})
	})
}

func TestAcousticAnalyzer(t *testing.T) {
	Convey("Given the default acoustic analyzer", t, func() {
		a := NewAcousticAnalyzer()

		Convey("Unit energy is 0 dB and a likely impact", func() {
			r := a.Analyze(1)
			So(r.LevelDB, ShouldEqual, 0)
			So(r.ImpactLikelihood, ShouldEqual, 0.8)
			So(r.StressDetected, ShouldBeTrue)
			So(a.Intensity(r), ShouldEqual, 100)
		})

		Convey("Moderate energy flags stress but not impact", func() {
			r := a.Analyze(0.05)
			So(r.LevelDB, ShouldAlmostEqual, 10*math.Log10(0.05), 1e-9)
			So(r.ImpactLikelihood, ShouldEqual, 0.1)
			So(r.StressDetected, ShouldBeTrue)
		})

		Convey("Silence sits at the floor", func() {
			for _, e := range []float64{0, -1, math.NaN(), math.Inf(1)} {
				r := a.Analyze(e)
				So(r.LevelDB, ShouldEqual, -100)
				So(a.Intensity(r), ShouldEqual, 0)
			}
		})

		Convey("Frames are reduced to mean-square energy", func() {
			So(FrameEnergy(nil), ShouldEqual, 0)
			So(FrameEnergy([]float64{1, -1, 1, -1}), ShouldEqual, 1)
			So(a.AnalyzeFrame([]float64{0.5, -0.5}).LevelDB, ShouldAlmostEqual, 10*math.Log10(0.25), 1e-9)
		})
	})
}

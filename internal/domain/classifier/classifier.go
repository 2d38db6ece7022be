// Package classifier turns raw motion samples into discrete road events.
//
// Classify is a pure function of the sample and its monitoring context except
// for the fall rule, which arms a cancellable confirmation timer and delivers
// the confirmed FallAlert asynchronously to a sink.
package classifier

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/logtech/roadsafe/internal/domain/model"
	"github.com/logtech/roadsafe/pkg/logger"
	"github.com/logtech/roadsafe/pkg/metrics"
)

// DefaultFallDelay is how long a fall trigger must hold before it is confirmed.
const DefaultFallDelay = 2 * time.Second

const radiansToDegrees = 180 / math.Pi

// Thresholds holds every rule limit. All comparisons are strict.
type Thresholds struct {
	TurnX              float64 // |x| above this is a sharp turn
	BrakeZ             float64 // |z| above this is harsh braking
	LeanDegrees        float64 // motorcycle lean angle limit
	LeanMinMagnitude   float64 // lean is only evaluated above this magnitude
	FallMagnitude      float64 // motorcycle fall trigger magnitude
	FallLateralX       float64 // |x| that marks lateral orientation
	PotholeMagnitude   float64
	AcousticLikelihood float64
	AlertIntensity     float64 // detections above this are always alert-worthy
}

// DefaultThresholds returns the calibrated limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TurnX:              12,
		BrakeZ:             15,
		LeanDegrees:        45,
		LeanMinMagnitude:   5,
		FallMagnitude:      25,
		FallLateralX:       8,
		PotholeMagnitude:   18,
		AcousticLikelihood: 0.7,
		AlertIntensity:     15,
	}
}

// Context is the monitoring state a sample was received under.
type Context struct {
	VehicleClass      model.VehicleClass
	MonitoringEnabled bool
}

// Detection is an emitted event plus whether the driver should be notified.
type Detection struct {
	Event       model.RoadEvent
	AlertWorthy bool
}

type pendingFall struct {
	seq       uint64
	timer     Timer
	at        time.Time
	magnitude float64
	lateral   bool
}

// Classifier applies the detection rules and owns the fall confirmation
// state. It is safe for concurrent use.
type Classifier struct {
	thresholds Thresholds
	acoustic   AcousticAnalyzer
	clock      Clock
	scheduler  Scheduler
	fallDelay  time.Duration
	sink       func(Detection)
	log        logger.Logger

	mu      sync.Mutex
	pending *pendingFall
	seq     uint64
	closed  bool
	// watching is the live switch for fall confirmation. Samples carry the
	// context they were received under, which may be stale by the time the
	// worker reaches them.
	watching bool
}

// New creates a classifier with default thresholds.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		thresholds: DefaultThresholds(),
		acoustic:   NewAcousticAnalyzer(),
		clock:      RealClock{},
		scheduler:  RealScheduler{},
		fallDelay:  DefaultFallDelay,
		log:        logger.Nop(),
		watching:   true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify evaluates one sample. With monitoring disabled it returns nothing
// and cancels any pending fall confirmation.
func (c *Classifier) Classify(sample model.MotionSample, ctx Context) []Detection {
	if !ctx.MonitoringEnabled {
		c.Cancel()
		return nil
	}
	start := time.Now()
	defer func() {
		metrics.RecordClassifyLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s := sample.Sanitized()
	at := s.At
	if at.IsZero() {
		at = c.clock.Now()
	}
	t := c.thresholds
	magnitude := s.Magnitude()
	var out []Detection

	if x := math.Abs(s.AccX); x > t.TurnX {
		out = append(out, c.detection(model.KindSharpTurn, x, at))
	}
	if z := math.Abs(s.AccZ); z > t.BrakeZ {
		out = append(out, c.detection(model.KindHarshBraking, z, at))
	}
	if ctx.VehicleClass == model.VehicleMotorcycle {
		lean := math.Abs(math.Atan2(s.AccX, s.AccY) * radiansToDegrees)
		if lean > t.LeanDegrees && magnitude > t.LeanMinMagnitude {
			out = append(out, c.detection(model.KindExcessiveLean, lean, at))
		}
		c.observeFall(s, magnitude, at)
	} else {
		c.Cancel()
	}
	if magnitude > t.PotholeMagnitude {
		out = append(out, c.detection(model.KindPotholeStrong, magnitude, at))
	}
	if s.AudioEnergy != nil {
		r := c.acoustic.Analyze(*s.AudioEnergy)
		if r.ImpactLikelihood > t.AcousticLikelihood {
			out = append(out, c.detection(model.KindAcousticImpact, c.acoustic.Intensity(r), at))
		}
	}
	return out
}

func (c *Classifier) detection(kind model.EventKind, intensity float64, at time.Time) Detection {
	ev := model.NewRoadEvent(kind, intensity, at)
	return Detection{
		Event:       ev,
		AlertWorthy: ev.Intensity > c.thresholds.AlertIntensity || kind.Critical(),
	}
}

// observeFall updates a pending confirmation with the latest orientation, or
// arms a new one when the sample crosses the trigger.
func (c *Classifier) observeFall(s model.MotionSample, magnitude float64, at time.Time) {
	lateral := math.Abs(s.AccX) > c.thresholds.FallLateralX

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.watching {
		return
	}
	if c.pending != nil {
		c.pending.lateral = lateral
		if magnitude > c.thresholds.FallMagnitude && lateral {
			metrics.RecordFallOutcome("ignored")
		}
		return
	}
	if magnitude <= c.thresholds.FallMagnitude || !lateral {
		return
	}
	c.seq++
	seq := c.seq
	c.pending = &pendingFall{
		seq:       seq,
		at:        at,
		magnitude: magnitude,
		lateral:   true,
	}
	c.pending.timer = c.scheduler.AfterFunc(c.fallDelay, func() { c.expire(seq) })
	metrics.RecordFallOutcome("triggered")
	c.log.Warn(context.Background(), "fall trigger armed",
		logger.Float64("magnitude", magnitude),
		logger.Duration("delay", c.fallDelay))
}

func (c *Classifier) expire(seq uint64) {
	c.mu.Lock()
	p := c.pending
	if p == nil || p.seq != seq || c.closed {
		c.mu.Unlock()
		return
	}
	if !c.watching {
		c.cancelLocked()
		c.mu.Unlock()
		return
	}
	c.pending = nil
	sink := c.sink
	c.mu.Unlock()

	if !p.lateral {
		metrics.RecordFallOutcome("discarded")
		c.log.Info(context.Background(), "fall trigger discarded, rider upright")
		return
	}
	metrics.RecordFallOutcome("confirmed")
	c.log.Warn(context.Background(), "fall confirmed", logger.Float64("magnitude", p.magnitude))
	if sink != nil {
		sink(c.detection(model.KindFallAlert, p.magnitude, p.at))
	}
}

// Cancel stops a pending fall confirmation, if any.
func (c *Classifier) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
}

func (c *Classifier) cancelLocked() {
	if c.pending == nil {
		return
	}
	c.pending.timer.Stop()
	c.pending = nil
	metrics.RecordFallOutcome("cancelled")
}

// SetMonitoring updates the live monitoring state. Fall confirmation only
// runs while monitoring is on for a motorcycle; any other state cancels a
// pending confirmation and keeps queued samples from arming a new one.
func (c *Classifier) SetMonitoring(enabled bool, vehicle model.VehicleClass) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watching = enabled && vehicle == model.VehicleMotorcycle
	if !c.watching {
		c.cancelLocked()
	}
}

// PendingFall reports whether a fall confirmation is armed.
func (c *Classifier) PendingFall() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Close cancels any pending confirmation and disables new triggers.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.closed = true
}

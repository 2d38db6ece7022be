package classifier

import (
	"time"

	"github.com/logtech/roadsafe/pkg/logger"
)

// Option configures a Classifier.
type Option func(*Classifier)

// WithThresholds replaces the detection thresholds.
func WithThresholds(t Thresholds) Option {
	return func(c *Classifier) {
		c.thresholds = t
	}
}

// WithAcousticAnalyzer replaces the acoustic analyzer.
func WithAcousticAnalyzer(a AcousticAnalyzer) Option {
	return func(c *Classifier) {
		c.acoustic = a
	}
}

// WithClock sets the clock used to timestamp samples that carry no time.
func WithClock(clock Clock) Option {
	return func(c *Classifier) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithScheduler sets the scheduler used for fall confirmation timers.
func WithScheduler(s Scheduler) Option {
	return func(c *Classifier) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// WithFallDelay sets how long a fall trigger waits before confirmation.
func WithFallDelay(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.fallDelay = d
		}
	}
}

// WithFallSink sets the receiver of confirmed falls. The sink runs on the
// timer goroutine.
func WithFallSink(sink func(Detection)) Option {
	return func(c *Classifier) {
		c.sink = sink
	}
}

// WithLogger sets the classifier logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.log = l
		}
	}
}

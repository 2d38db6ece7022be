package service

import (
	"time"

	"github.com/logtech/roadsafe/internal/adapters/notify"
	"github.com/logtech/roadsafe/internal/adapters/repository"
	"github.com/logtech/roadsafe/internal/domain/classifier"
	"github.com/logtech/roadsafe/internal/domain/model"
	"github.com/logtech/roadsafe/internal/domain/scoring"
	"github.com/logtech/roadsafe/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the event store. The service owns it and closes it on Stop.
// Without one an in-memory store is created on Start.
func WithStore(store repository.Store, driver string) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.storeDriver = driver
		}
	}
}

// WithQueueSize sets the maximum number of samples waiting for the worker.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many batch ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithWindowSamples sets the clean-window length in samples.
func WithWindowSamples(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.windowSamples = n
		}
	}
}

// WithThresholds overrides the classification thresholds.
func WithThresholds(t classifier.Thresholds) Option {
	return func(s *Service) {
		s.thresholds = t
	}
}

// WithFallConfirmDelay sets how long a fall trigger waits for confirmation.
func WithFallConfirmDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fallDelay = d
		}
	}
}

// WithAnnounceCooldown sets the per-kind spacing between spoken alerts.
func WithAnnounceCooldown(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.announceCooldown = d
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for the worker to drain.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithScoring passes options to the scoring engine.
func WithScoring(opts ...scoring.Option) Option {
	return func(s *Service) {
		s.scoringOpts = append(s.scoringOpts, opts...)
	}
}

// WithStrictAppeals makes a transition out of a resolved appeal panic.
func WithStrictAppeals(strict bool) Option {
	return func(s *Service) {
		s.strictAppeals = strict
	}
}

// WithMonitoring sets the initial monitoring switch.
func WithMonitoring(enabled bool, vehicle model.VehicleClass) Option {
	return func(s *Service) {
		s.monitoring.Enabled = enabled
		if vehicle != "" {
			s.monitoring.VehicleClass = vehicle
		}
	}
}

// WithDeviceID sets the id printed on certificates.
func WithDeviceID(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.deviceID = id
		}
	}
}

// WithSpeaker sets where alerts are spoken. Defaults to the service log.
func WithSpeaker(sp notify.Speaker) Option {
	return func(s *Service) {
		if sp != nil {
			s.speaker = sp
		}
	}
}

// WithClock sets the time source for fatigue events, learning records and
// certificates.
func WithClock(c classifier.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithScheduler sets the scheduler used for fall confirmation timers.
func WithScheduler(sc classifier.Scheduler) Option {
	return func(s *Service) {
		if sc != nil {
			s.scheduler = sc
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

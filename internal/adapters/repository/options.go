package repository

import (
	"time"

	"github.com/logtech/roadsafe/pkg/logger"
)

type options struct {
	metricsInterval time.Duration
	log             logger.Logger
}

func defaultOptions() options {
	return options{
		metricsInterval: 5 * time.Second,
		log:             logger.Nop(),
	}
}

// Option configures a store.
type Option func(*options)

// WithMetricsUpdateInterval sets how often the store size gauge is refreshed.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.metricsInterval = interval
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

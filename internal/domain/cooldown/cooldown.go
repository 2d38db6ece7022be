// Package cooldown rate-limits repeated announcements with explicit
// per-key timestamps.
package cooldown

import (
	"sync"
	"time"
)

// Defaults for a Tracker.
const (
	DefaultWindow  = 8 * time.Second
	DefaultMaxKeys = 64
)

// Tracker allows a key at most once per window. It is safe for concurrent use.
type Tracker struct {
	window  time.Duration
	maxKeys int

	mu   sync.Mutex
	last map[string]time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithWindow sets the minimum spacing between two allowed calls per key.
func WithWindow(d time.Duration) Option {
	return func(t *Tracker) {
		if d >= 0 {
			t.window = d
		}
	}
}

// WithMaxKeys bounds the number of remembered keys.
func WithMaxKeys(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxKeys = n
		}
	}
}

// New creates a Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		window:  DefaultWindow,
		maxKeys: DefaultMaxKeys,
		last:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Allow reports whether key may fire at the given time and, if so, records
// it. Times earlier than the last recorded one are suppressed.
func (t *Tracker) Allow(key string, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.last[key]; ok && at.Sub(prev) < t.window {
		return false
	}
	if _, ok := t.last[key]; !ok && len(t.last) >= t.maxKeys {
		t.evictOldest()
	}
	t.last[key] = at
	return true
}

// Reset forgets every key.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = make(map[string]time.Time)
}

// Window returns the configured window.
func (t *Tracker) Window() time.Duration { return t.window }

func (t *Tracker) evictOldest() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, at := range t.last {
		if !found || at.Before(oldestAt) {
			oldestKey, oldestAt, found = k, at, true
		}
	}
	if found {
		delete(t.last, oldestKey)
	}
}

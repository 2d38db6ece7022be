// Package notify is the voice/UI boundary. The core hands every persisted
// event to a Notifier; the Announcer decides whether the driver hears it.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/logtech/roadsafe/internal/domain/cooldown"
	"github.com/logtech/roadsafe/internal/domain/model"
	"github.com/logtech/roadsafe/pkg/logger"
	"github.com/logtech/roadsafe/pkg/metrics"
)

// Notifier receives a persisted event and whether it is alert-worthy.
type Notifier interface {
	Notify(ctx context.Context, ev model.RoadEvent, alertWorthy bool) error
}

// Speaker renders text to the driver, e.g. through text-to-speech.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// AlertText is the phrase announced for an event.
func AlertText(kind model.EventKind) string {
	return fmt.Sprintf("Alerta: %s detectado", kind.Label())
}

// Announcer speaks alert-worthy events, at most once per kind per cooldown
// window.
type Announcer struct {
	speaker  Speaker
	cooldown *cooldown.Tracker
	log      logger.Logger
}

// AnnouncerOption configures an Announcer.
type AnnouncerOption func(*Announcer)

// WithCooldown sets the per-kind spacing between announcements.
func WithCooldown(d time.Duration) AnnouncerOption {
	return func(a *Announcer) {
		a.cooldown = cooldown.New(cooldown.WithWindow(d))
	}
}

// WithLogger sets the announcer logger.
func WithLogger(l logger.Logger) AnnouncerOption {
	return func(a *Announcer) {
		if l != nil {
			a.log = l
		}
	}
}

// NewAnnouncer creates an announcer speaking through s.
func NewAnnouncer(s Speaker, opts ...AnnouncerOption) *Announcer {
	a := &Announcer{
		speaker:  s,
		cooldown: cooldown.New(),
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Notify announces ev when it is alert-worthy and its kind is not cooling
// down. The cooldown runs on event time so replays are deterministic.
func (a *Announcer) Notify(ctx context.Context, ev model.RoadEvent, alertWorthy bool) error {
	if !alertWorthy || ev.Kind.Marker() {
		return nil
	}
	if !a.cooldown.Allow(string(ev.Kind), ev.Time()) {
		metrics.RecordAnnouncement("suppressed")
		a.log.Debug(ctx, "announcement suppressed", logger.String("kind", string(ev.Kind)))
		return nil
	}
	if err := a.speaker.Speak(ctx, AlertText(ev.Kind)); err != nil {
		metrics.RecordAnnouncement("failed")
		return fmt.Errorf("speaking %s: %w", ev.Kind, err)
	}
	metrics.RecordAnnouncement("spoken")
	return nil
}

// LogSpeaker speaks into the structured log.
type LogSpeaker struct {
	log logger.Logger
}

// NewLogSpeaker creates a speaker writing to l.
func NewLogSpeaker(l logger.Logger) *LogSpeaker {
	if l == nil {
		l = logger.Nop()
	}
	return &LogSpeaker{log: l}
}

func (s *LogSpeaker) Speak(ctx context.Context, text string) error {
	s.log.Warn(ctx, "driver alert", logger.String("speech", text))
	return nil
}

// RecordingSpeaker keeps every phrase in memory. Used by the drive simulator
// and tests.
type RecordingSpeaker struct {
	mu      sync.Mutex
	phrases []string
}

func (s *RecordingSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phrases = append(s.phrases, text)
	return nil
}

// Phrases returns a copy of everything spoken so far.
func (s *RecordingSpeaker) Phrases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.phrases...)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, model.RoadEvent, bool) error { return nil }

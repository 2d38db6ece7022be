// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// EventKind is the closed set of road/safety events.
type EventKind string

// Event kinds. CleanWindow is a marker appended when a monitoring window
// closes without any critical event.
const (
	KindHarshBraking   EventKind = "harsh_braking"
	KindSharpTurn      EventKind = "sharp_turn"
	KindExcessiveLean  EventKind = "excessive_lean"
	KindFallAlert      EventKind = "fall_alert"
	KindPotholeStrong  EventKind = "pothole_strong"
	KindAcousticImpact EventKind = "acoustic_impact"
	KindFatigue        EventKind = "fatigue"
	KindCleanWindow    EventKind = "clean_window"
)

// AllEventKinds returns every kind in display order.
func AllEventKinds() []EventKind {
	return []EventKind{
		KindHarshBraking,
		KindSharpTurn,
		KindExcessiveLean,
		KindFallAlert,
		KindPotholeStrong,
		KindAcousticImpact,
		KindFatigue,
		KindCleanWindow,
	}
}

// ParseEventKind converts a wire value into an EventKind.
func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllEventKinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

// Label returns the fixed display label announced to the driver.
func (k EventKind) Label() string {
	switch k {
	case KindHarshBraking:
		return "Frenado Brusco"
	case KindSharpTurn:
		return "Giro Brusco"
	case KindExcessiveLean:
		return "Inclinación Excesiva"
	case KindFallAlert:
		return "ALERTA DE CAÍDA"
	case KindPotholeStrong:
		return "Bache Fuerte"
	case KindAcousticImpact:
		return "Impacto Acústico"
	case KindFatigue:
		return "Fatiga"
	case KindCleanWindow:
		return "Normal"
	default:
		return string(k)
	}
}

// Critical reports whether the kind always warrants an alert.
func (k EventKind) Critical() bool {
	switch k {
	case KindHarshBraking, KindSharpTurn, KindFallAlert, KindFatigue:
		return true
	default:
		return false
	}
}

// Penalized reports whether the kind counts against the safety index.
// Acoustic impacts are only ever emitted above the likelihood gate, so
// every stored one counts.
func (k EventKind) Penalized() bool {
	switch k {
	case KindHarshBraking, KindSharpTurn, KindFallAlert, KindAcousticImpact, KindFatigue:
		return true
	default:
		return false
	}
}

// Marker reports whether the kind is a bookkeeping marker rather than a
// detected road event.
func (k EventKind) Marker() bool {
	return k == KindCleanWindow
}

// AppealStatus tracks a driver contest of an event.
type AppealStatus string

// Appeal states. Validated and rejected are terminal.
const (
	AppealNone      AppealStatus = "none"
	AppealAppealed  AppealStatus = "appealed"
	AppealValidated AppealStatus = "validated"
	AppealRejected  AppealStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s AppealStatus) Terminal() bool {
	return s == AppealValidated || s == AppealRejected
}

// ParseAppealStatus converts a wire value into an AppealStatus.
func ParseAppealStatus(s string) (AppealStatus, error) {
	switch st := AppealStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case AppealNone, AppealAppealed, AppealValidated, AppealRejected:
		return st, nil
	default:
		return "", fmt.Errorf("unknown appeal status %q", s)
	}
}

// RoadEvent is a persisted classification result.
type RoadEvent struct {
	ID            int64        `json:"id"`
	Timestamp     int64        `json:"timestamp"` // epoch millis
	Kind          EventKind    `json:"event_kind"`
	Intensity     float64      `json:"intensity"`
	Synced        bool         `json:"synced"`
	VocalDefense  string       `json:"vocal_defense,omitempty"`
	IntegrityHash string       `json:"integrity_hash,omitempty"`
	Status        AppealStatus `json:"status"`
}

// NewRoadEvent builds an unsaved event, clamping intensity to a finite
// non-negative value.
func NewRoadEvent(kind EventKind, intensity float64, at time.Time) RoadEvent {
	switch {
	case math.IsNaN(intensity) || intensity < 0:
		intensity = 0
	case math.IsInf(intensity, 1):
		intensity = math.MaxFloat64
	}
	return RoadEvent{
		Timestamp: at.UnixMilli(),
		Kind:      kind,
		Intensity: intensity,
		Status:    AppealNone,
	}
}

// Time returns the event timestamp as a time.Time.
func (e RoadEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// LearningRecord is a completed micro-learning or trivia check.
type LearningRecord struct {
	ID          int64     `json:"id"`
	TopicID     string    `json:"topic_id"`
	PersonID    string    `json:"person_id"`
	CompletedAt time.Time `json:"completed_at"`
}

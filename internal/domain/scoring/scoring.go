// Package scoring derives the safety index, insurance discount and reward
// token balance from the event and learning logs.
package scoring

import (
	"math"

	"github.com/logtech/roadsafe/internal/domain/model"
)

// Scoring constants.
const (
	DefaultPenaltyWeight = 5
	DefaultBaseDiscount  = 500.0
	DefaultCurrency      = "PEN"

	maxIndex              = 100
	pointsPerLearning     = 2
	maxEducationBonus     = 10
	tokensPerLearning     = 2
	cleanWindowsPerReward = 10
	tokensPerReward       = 5
)

// Engine computes SafetyReports. It holds only configuration, so a single
// Engine may be shared between goroutines.
type Engine struct {
	penaltyWeight    int
	baseDiscount     float64
	currency         string
	excludeValidated bool
}

// NewEngine creates an engine with the default penalty weight and discount.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		penaltyWeight: DefaultPenaltyWeight,
		baseDiscount:  DefaultBaseDiscount,
		currency:      DefaultCurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PenaltyWeight returns the configured points per critical event.
func (e *Engine) PenaltyWeight() int { return e.penaltyWeight }

// Compute is a pure function of its inputs: identical inputs yield identical
// reports.
func (e *Engine) Compute(events []model.RoadEvent, learning []model.LearningRecord) model.SafetyReport {
	critical, clean := e.tally(events)

	educationBonus := min(maxEducationBonus, len(learning)*pointsPerLearning)
	raw := float64(maxIndex - critical*e.penaltyWeight + educationBonus)
	index := clamp(int(math.Round(raw)), 0, maxIndex)

	educationTokens := len(learning) * tokensPerLearning
	safetyTokens := (clean / cleanWindowsPerReward) * tokensPerReward

	return model.SafetyReport{
		SafetyIndex:       index,
		ProjectedDiscount: roundCents(e.baseDiscount * float64(index) / maxIndex),
		Currency:          e.currency,
		TokenBalance:      max(0, educationTokens+safetyTokens),
		CriticalCount:     critical,
		PenaltyWeight:     e.penaltyWeight,
		EducationBonus:    educationBonus,
		EducationTokens:   educationTokens,
		SafetyTokens:      safetyTokens,
		CleanWindows:      clean,
	}
}

func (e *Engine) tally(events []model.RoadEvent) (critical, clean int) {
	for _, ev := range events {
		switch {
		case ev.Kind == model.KindCleanWindow:
			clean++
		case ev.Kind.Penalized():
			if e.excludeValidated && ev.Status == model.AppealValidated {
				continue
			}
			critical++
		}
	}
	return critical, clean
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

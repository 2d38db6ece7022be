package drivesim

import (
	"fmt"

	"github.com/logtech/roadsafe/internal/domain/model"
)

const (
	maxIndex          = 100
	pointsPerLearning = 2
	maxEducationBonus = 10
)

// ExpectedIndex is the safety index for critical events at weight plus
// learning completed records.
func ExpectedIndex(critical, weight, learning int) int {
	bonus := min(maxEducationBonus, learning*pointsPerLearning)
	return max(0, min(maxIndex, maxIndex-critical*weight+bonus))
}

// Verify checks that the drive produced exactly one harsh braking event per
// brake and that the report is consistent with the server's own counters.
// On a server that started empty the index is checked against the drive
// alone.
func Verify(cfg *Config, out *Outcome) error {
	if out.Dropped > 0 {
		return fmt.Errorf("%w: %d samples dropped by a full queue", ErrVerification, out.Dropped)
	}
	if out.HarshBraking != cfg.Brakes {
		return fmt.Errorf("%w: expected %d harsh braking events, got %d", ErrVerification, cfg.Brakes, out.HarshBraking)
	}
	r := out.Report
	if got := r.CriticalCount - out.Baseline.CriticalCount; got < cfg.Brakes {
		return fmt.Errorf("%w: critical count grew by %d, expected at least %d", ErrVerification, got, cfg.Brakes)
	}
	if want := ExpectedIndex(r.CriticalCount, r.PenaltyWeight, r.EducationTokens/pointsPerLearning); r.SafetyIndex != want {
		return fmt.Errorf("%w: safety index %d inconsistent with report counters (want %d)", ErrVerification, r.SafetyIndex, want)
	}
	if fresh(out.Baseline) {
		if want := ExpectedIndex(cfg.Brakes, r.PenaltyWeight, cfg.Learning); r.SafetyIndex != want {
			return fmt.Errorf("%w: safety index %d, want %d", ErrVerification, r.SafetyIndex, want)
		}
	}
	return nil
}

func fresh(r model.SafetyReport) bool {
	return r.CriticalCount == 0 && r.EducationTokens == 0
}

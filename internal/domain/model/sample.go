package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// VehicleClass selects vehicle-specific classification rules.
type VehicleClass string

// Vehicle classes.
const (
	VehicleTruck      VehicleClass = "truck"
	VehicleMotorcycle VehicleClass = "motorcycle"
	VehicleCar        VehicleClass = "car"
)

// ParseVehicleClass accepts the wire names plus the short "moto" alias.
func ParseVehicleClass(s string) (VehicleClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "truck":
		return VehicleTruck, nil
	case "motorcycle", "moto":
		return VehicleMotorcycle, nil
	case "car":
		return VehicleCar, nil
	default:
		return "", fmt.Errorf("unknown vehicle class %q", s)
	}
}

// MotionSample is a single accelerometer reading, gravity included, in m/s².
type MotionSample struct {
	AccX float64
	AccY float64
	AccZ float64
	// AudioEnergy is the mean-square energy of the latest audio frame; nil
	// when no audio signal is wired.
	AudioEnergy *float64
	// At is the sensor time; zero means "now" for the consumer.
	At time.Time
}

// Sanitized replaces non-finite values with zero.
func (s MotionSample) Sanitized() MotionSample {
	out := s
	out.AccX = finiteOrZero(s.AccX)
	out.AccY = finiteOrZero(s.AccY)
	out.AccZ = finiteOrZero(s.AccZ)
	if s.AudioEnergy != nil {
		e := finiteOrZero(*s.AudioEnergy)
		out.AudioEnergy = &e
	}
	return out
}

// Magnitude returns the euclidean norm of the acceleration vector.
func (s MotionSample) Magnitude() float64 {
	return math.Hypot(math.Hypot(s.AccX, s.AccY), s.AccZ)
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// SafetyReport is derived on demand from the event and learning logs.
type SafetyReport struct {
	SafetyIndex       int     `json:"safety_index"`
	ProjectedDiscount float64 `json:"projected_discount"`
	Currency          string  `json:"currency"`
	TokenBalance      int     `json:"token_balance"`

	CriticalCount   int `json:"critical_count"`
	PenaltyWeight   int `json:"penalty_weight"`
	EducationBonus  int `json:"education_bonus"`
	EducationTokens int `json:"education_tokens"`
	SafetyTokens    int `json:"safety_tokens"`
	CleanWindows    int `json:"clean_windows"`
}

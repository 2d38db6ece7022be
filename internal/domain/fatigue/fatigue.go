// Package fatigue estimates driver drowsiness from eye landmarks using the
// eye aspect ratio (EAR).
package fatigue

import (
	"errors"
	"math"
)

// EAR thresholds and alert levels.
const (
	DrowsyEAR   = 0.26
	CriticalEAR = 0.20

	LevelNone     = 0
	LevelDrowsy   = 2
	LevelCritical = 3

	// openEAR is reported for eyes that cannot be measured.
	openEAR      = 1.0
	eyeLandmarks = 6
)

// ErrNoLandmarks is returned when neither eye has enough points.
var ErrNoLandmarks = errors.New("fatigue: not enough eye landmarks")

// Point is a 2D landmark.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Report is the drowsiness estimate for one frame.
type Report struct {
	EAR        float64 `json:"ear"`
	Drowsy     bool    `json:"is_drowsy"`
	AlertLevel int     `json:"alert_level"`
}

// EyeAspectRatio computes (|p2-p6| + |p3-p5|) / (2|p1-p4|) over the six
// landmarks p1..p6 of one eye. Unmeasurable eyes read as fully open.
func EyeAspectRatio(eye []Point) float64 {
	if len(eye) < eyeLandmarks {
		return openEAR
	}
	width := dist(eye[0], eye[3])
	if width == 0 || math.IsNaN(width) {
		return openEAR
	}
	return (dist(eye[1], eye[5]) + dist(eye[2], eye[4])) / (2 * width)
}

// Analyze averages the EAR of both eyes and grades it.
func Analyze(left, right []Point) Report {
	ear := (EyeAspectRatio(left) + EyeAspectRatio(right)) / 2
	r := Report{EAR: ear, Drowsy: ear < DrowsyEAR}
	switch {
	case ear < CriticalEAR:
		r.AlertLevel = LevelCritical
	case ear < DrowsyEAR:
		r.AlertLevel = LevelDrowsy
	default:
		r.AlertLevel = LevelNone
	}
	return r
}

// Validate reports ErrNoLandmarks when neither eye can be measured.
func Validate(left, right []Point) error {
	if len(left) < eyeLandmarks && len(right) < eyeLandmarks {
		return ErrNoLandmarks
	}
	return nil
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

package classifier

import "math"

// Acoustic analysis defaults.
const (
	defaultFloorDB         = -100.0
	defaultImpactDB        = -10.0
	defaultStressDB        = -20.0
	defaultHighLikelihood  = 0.8
	defaultLowLikelihood   = 0.1
	decibelsPerPowerDecade = 10.0
)

// AcousticReport summarizes one audio frame.
type AcousticReport struct {
	LevelDB          float64 `json:"level_db"`
	ImpactLikelihood float64 `json:"impact_likelihood"`
	StressDetected   bool    `json:"stress_detected"`
}

// AcousticAnalyzer maps frame energy to a level in dB and an impact
// likelihood in [0,1].
type AcousticAnalyzer struct {
	FloorDB        float64
	ImpactDB       float64
	StressDB       float64
	HighLikelihood float64
	LowLikelihood  float64
}

// NewAcousticAnalyzer returns an analyzer with the calibrated defaults.
func NewAcousticAnalyzer() AcousticAnalyzer {
	return AcousticAnalyzer{
		FloorDB:        defaultFloorDB,
		ImpactDB:       defaultImpactDB,
		StressDB:       defaultStressDB,
		HighLikelihood: defaultHighLikelihood,
		LowLikelihood:  defaultLowLikelihood,
	}
}

// Analyze evaluates a mean-square frame energy. Non-positive or non-finite
// energy is reported at the floor level.
func (a AcousticAnalyzer) Analyze(energy float64) AcousticReport {
	level := a.FloorDB
	if energy > 0 && !math.IsInf(energy, 0) && !math.IsNaN(energy) {
		level = math.Max(a.FloorDB, decibelsPerPowerDecade*math.Log10(energy))
	}
	likelihood := a.LowLikelihood
	if level > a.ImpactDB {
		likelihood = a.HighLikelihood
	}
	return AcousticReport{
		LevelDB:          level,
		ImpactLikelihood: likelihood,
		StressDetected:   level > a.StressDB,
	}
}

// AnalyzeFrame computes the mean-square energy of raw PCM samples and
// analyzes it. An empty frame is reported at the floor level.
func (a AcousticAnalyzer) AnalyzeFrame(pcm []float64) AcousticReport {
	return a.Analyze(FrameEnergy(pcm))
}

// Intensity returns the decibel-equivalent level above the floor, which is
// never negative.
func (a AcousticAnalyzer) Intensity(r AcousticReport) float64 {
	return math.Max(0, r.LevelDB-a.FloorDB)
}

// FrameEnergy returns the mean of the squared samples.
func FrameEnergy(pcm []float64) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, v := range pcm {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v * v
	}
	return sum / float64(len(pcm))
}

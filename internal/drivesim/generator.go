package drivesim

import "time"

// Calm and braking readings. Calm driving reads gravity on the y axis; a
// brake is a pure z spike above the braking limit and below every
// magnitude-based rule.
const (
	gravity    = 9.8
	brakeAccel = 16.0
)

// Generate builds a drive of n samples with brakes harsh braking readings
// spread evenly across it, timestamped from start.
func Generate(n, brakes int, start time.Time) []Sample {
	out := make([]Sample, n)
	for i := range out {
		out[i] = Sample{
			Y:  gravity,
			TS: start.Add(time.Duration(i) * sampleInterval).UnixMilli(),
		}
	}
	for i := 0; i < brakes; i++ {
		pos := (i + 1) * n / (brakes + 1)
		if pos >= n {
			pos = n - 1
		}
		out[pos].Y = 0
		out[pos].Z = brakeAccel
	}
	return out
}

// Batches splits samples into consecutive slices of at most size.
func Batches(samples []Sample, size int) [][]Sample {
	var out [][]Sample
	for len(samples) > 0 {
		k := min(size, len(samples))
		out = append(out, samples[:k])
		samples = samples[k:]
	}
	return out
}

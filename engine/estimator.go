package engine

import "math"

// fullThreshold is the fill percentage at and above which a bin counts as
// full.
const fullThreshold = 90

// DistanceBand maps raw ultrasonic distances to fill percentages. MaxCM is
// the distance read from an empty bin (0%), MinCM from a full one (100%).
type DistanceBand struct {
	MinCM float64
	MaxCM float64
}

// DefaultBand matches the deployed hardware calibration.
var DefaultBand = DistanceBand{MinCM: 7, MaxCM: 45}

// Estimate is a normalized fill reading.
type Estimate struct {
	Percentage int
	IsFull     bool
}

// estimateFromBand converts a raw distance to a fill percentage using a
// fixed distance band. The distance is clamped to the band before the linear
// inversion so an out-of-band reading can never produce a value outside
// [0,100].
func estimateFromBand(distanceCM float64, band DistanceBand) Estimate {
	d := clamp(distanceCM, band.MinCM, band.MaxCM)
	pct := 100 * (band.MaxCM - d) / (band.MaxCM - band.MinCM)
	return finishEstimate(pct)
}

// estimateFromHeight converts a raw distance to a fill percentage relative
// to a per-bin height. Clamped before rounding, same as the band formula.
func estimateFromHeight(distanceCM, heightCM float64) Estimate {
	pct := 100 * (heightCM - distanceCM) / heightCM
	return finishEstimate(pct)
}

// finishEstimate clamps to [0,100] and rounds half away from zero. Rounding
// happens after the clamp, so a mid-calculation negative or >100 value never
// reaches stored state.
func finishEstimate(pct float64) Estimate {
	p := int(math.Round(clamp(pct, 0, 100)))
	return Estimate{Percentage: p, IsFull: p >= fullThreshold}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

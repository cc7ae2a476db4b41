// Package axis maps data coordinates to pixels: a linear scale for time and
// a band scale for the ordered location list.
package axis

import "math"

// Nice step thresholds, as ratios of the raw step to its decade.
var (
	tickBreak10 = math.Sqrt(50)
	tickBreak5  = math.Sqrt(10)
	tickBreak2  = math.Sqrt(2)
)

// Linear maps the continuous domain [D0, D1] onto the range [R0, R1].
type Linear struct {
	D0, D1 float64
	R0, R1 float64
}

// NewLinear creates a linear scale.
func NewLinear(d0, d1, r0, r1 float64) Linear {
	return Linear{D0: d0, D1: d1, R0: r0, R1: r1}
}

// Map converts a domain value to a range value. A degenerate domain maps
// everything to R0.
func (s Linear) Map(v float64) float64 {
	span := s.D1 - s.D0
	if span == 0 {
		return s.R0
	}

	return s.R0 + (v-s.D0)/span*(s.R1-s.R0)
}

// Invert converts a range value back to the domain.
func (s Linear) Invert(px float64) float64 {
	span := s.R1 - s.R0
	if span == 0 {
		return s.D0
	}

	return s.D0 + (px-s.R0)/span*(s.D1-s.D0)
}

// Ticks returns roughly n evenly spaced round values (steps of 1, 2 or 5
// times a power of ten) inside the domain.
func (s Linear) Ticks(n int) []float64 {
	lo, hi := min(s.D0, s.D1), max(s.D0, s.D1)
	if n <= 0 || lo == hi {
		return nil
	}

	step := niceStep((hi - lo) / float64(n))
	first := math.Ceil(lo / step)
	last := math.Floor(hi / step)

	ticks := make([]float64, 0, int(last-first)+1)
	for i := first; i <= last; i++ {
		ticks = append(ticks, i*step)
	}

	return ticks
}

func niceStep(raw float64) float64 {
	power := math.Pow(10, math.Floor(math.Log10(raw)))
	ratio := raw / power

	switch {
	case ratio >= tickBreak10:
		return 10 * power
	case ratio >= tickBreak5:
		return 5 * power
	case ratio >= tickBreak2:
		return 2 * power
	default:
		return power
	}
}

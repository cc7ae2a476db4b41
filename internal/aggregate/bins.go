// Package aggregate computes per-bin utilization series over the children of
// a primitive node, per location and merged across locations.
package aggregate

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidBins is returned for an empty or inverted bin domain.
var ErrInvalidBins = errors.New("invalid bin layout")

// Bins is a fixed-width bucketing of [DomainBegin, DomainEnd].
type Bins struct {
	DomainBegin float64
	DomainEnd   float64
	Count       int
}

// Validate checks the layout.
func (b Bins) Validate() error {
	if b.Count <= 0 {
		return fmt.Errorf("%w: count %d", ErrInvalidBins, b.Count)
	}

	if math.IsNaN(b.DomainBegin) || math.IsNaN(b.DomainEnd) || b.DomainEnd <= b.DomainBegin {
		return fmt.Errorf("%w: domain [%v, %v]", ErrInvalidBins, b.DomainBegin, b.DomainEnd)
	}

	return nil
}

// Size returns the width of one bin.
func (b Bins) Size() float64 {
	return (b.DomainEnd - b.DomainBegin) / float64(b.Count)
}

// Index returns the bin holding t, clamped to [0, Count-1].
func (b Bins) Index(t float64) int {
	i := int(math.Floor((t - b.DomainBegin) / b.Size()))

	return max(0, min(i, b.Count-1))
}

// Begin returns the start time of bin i.
func (b Bins) Begin(i int) float64 {
	return b.DomainBegin + float64(i)*b.Size()
}

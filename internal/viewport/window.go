// Package viewport models the visible time and location windows of a
// timeline and keeps them clamped to the global data limits.
package viewport

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidWindow is returned for proposals with NaN or infinite bounds.
	ErrInvalidWindow = errors.New("invalid viewport window")
	// ErrInvalidLimits is returned when axis limits or the minimum width are unusable.
	ErrInvalidLimits = errors.New("invalid viewport limits")
)

// Window is a closed range [Begin, End] along one axis.
type Window struct {
	Begin float64 `json:"begin" yaml:"begin"`
	End   float64 `json:"end"   yaml:"end"`
}

// Width returns End - Begin.
func (w Window) Width() float64 {
	return w.End - w.Begin
}

// Center returns the midpoint.
func (w Window) Center() float64 {
	return w.Begin + w.Width()/2
}

// Contains reports whether other lies fully inside w.
func (w Window) Contains(other Window) bool {
	return other.Begin >= w.Begin && other.End <= w.End
}

// Overlaps reports whether the two closed ranges intersect.
func (w Window) Overlaps(other Window) bool {
	return w.Begin <= other.End && other.Begin <= w.End
}

// String renders the window as [begin, end].
func (w Window) String() string {
	return fmt.Sprintf("[%g, %g]", w.Begin, w.End)
}

func (w Window) valid() bool {
	return !math.IsNaN(w.Begin) && !math.IsNaN(w.End) && !math.IsInf(w.Begin, 0) && !math.IsInf(w.End, 0)
}

// Clamp normalizes a proposed window against limits. Reversed bounds are
// swapped, proposals narrower than minWidth are widened around their centre,
// proposals at least as wide as the limits collapse to the limits, and any
// remaining overshoot is corrected by shifting the window, never by
// resizing it.
func Clamp(proposed, limits Window, minWidth float64) (Window, error) {
	if !proposed.valid() {
		return Window{}, fmt.Errorf("%w: %s", ErrInvalidWindow, proposed)
	}

	if !limits.valid() || limits.End <= limits.Begin {
		return Window{}, fmt.Errorf("%w: limits %s", ErrInvalidLimits, limits)
	}

	if proposed.Begin > proposed.End {
		proposed.Begin, proposed.End = proposed.End, proposed.Begin
	}

	if proposed.Width() < minWidth {
		c := proposed.Center()
		proposed = Window{Begin: c - minWidth/2, End: c + minWidth/2}
	}

	if proposed.Width() >= limits.Width() {
		return limits, nil
	}

	return shiftInto(proposed, limits), nil
}

// Spillover returns a window centred on w whose width is factor times the
// width of w, shifted back inside limits. Factors below 1 are treated as 1.
func Spillover(w Window, factor float64, limits Window) Window {
	factor = max(factor, 1)

	half := w.Width() * factor / 2
	c := w.Center()
	out := Window{Begin: c - half, End: c + half}

	if out.Width() >= limits.Width() {
		return limits
	}

	return shiftInto(out, limits)
}

func shiftInto(w, limits Window) Window {
	if w.Begin < limits.Begin {
		w.End += limits.Begin - w.Begin
		w.Begin = limits.Begin
	}

	if w.End > limits.End {
		w.Begin -= w.End - limits.End
		w.End = limits.End
	}

	// Rounding in the shifts above can leave a residue of one ulp.
	w.Begin = max(w.Begin, limits.Begin)
	w.End = min(w.End, limits.End)

	return w
}

package viewport

import (
	"fmt"
	"sync"
)

// ChangeFunc observes a committed window change together with the axis
// generation it produced.
type ChangeFunc func(w Window, generation uint64)

// Axis is one clamped, observable viewport dimension. All methods are safe
// for concurrent use.
type Axis struct {
	mu         sync.Mutex
	limits     Window
	minWidth   float64
	window     Window
	generation uint64
	listeners  []ChangeFunc
}

// NewAxis creates an axis showing the full limits. minWidth must be positive;
// it is capped at the limits width.
func NewAxis(limits Window, minWidth float64) (*Axis, error) {
	if !limits.valid() || limits.End <= limits.Begin {
		return nil, fmt.Errorf("%w: limits %s", ErrInvalidLimits, limits)
	}

	if minWidth <= 0 {
		return nil, fmt.Errorf("%w: min width %g", ErrInvalidLimits, minWidth)
	}

	return &Axis{
		limits:   limits,
		minWidth: min(minWidth, limits.Width()),
		window:   limits,
	}, nil
}

// Window returns the current window.
func (a *Axis) Window() Window {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.window
}

// Limits returns the global limits.
func (a *Axis) Limits() Window {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.limits
}

// MinWidth returns the effective minimum window width.
func (a *Axis) MinWidth() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.minWidth
}

// Generation returns the number of committed window changes.
func (a *Axis) Generation() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.generation
}

// OnChange registers fn to run after every committed change. Listeners run
// on the mutating goroutine, outside the axis lock, in registration order.
func (a *Axis) OnChange(fn ChangeFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.listeners = append(a.listeners, fn)
}

// SetWindow clamps and commits a proposed window.
func (a *Axis) SetWindow(begin, end float64) (Window, error) {
	a.mu.Lock()

	w, err := Clamp(Window{Begin: begin, End: end}, a.limits, a.minWidth)
	if err != nil {
		a.mu.Unlock()

		return Window{}, err
	}

	return a.commitLocked(w), nil
}

// Pan shifts the window by delta without changing its width.
func (a *Axis) Pan(delta float64) (Window, error) {
	w := a.Window()

	return a.SetWindow(w.Begin+delta, w.End+delta)
}

// Zoom scales the window width by factor around anchor. Factors below 1 zoom in.
func (a *Axis) Zoom(factor, anchor float64) (Window, error) {
	if factor <= 0 {
		return Window{}, fmt.Errorf("%w: zoom factor %g", ErrInvalidWindow, factor)
	}

	w := a.Window()

	return a.SetWindow(anchor-(anchor-w.Begin)*factor, anchor+(w.End-anchor)*factor)
}

// SetLimits replaces the limits and re-clamps the current window, keeping
// its width where possible.
func (a *Axis) SetLimits(limits Window, minWidth float64) (Window, error) {
	if !limits.valid() || limits.End <= limits.Begin || minWidth <= 0 {
		return Window{}, fmt.Errorf("%w: limits %s min width %g", ErrInvalidLimits, limits, minWidth)
	}

	a.mu.Lock()

	a.limits = limits
	a.minWidth = min(minWidth, limits.Width())

	w, err := Clamp(a.window, a.limits, a.minWidth)
	if err != nil {
		a.mu.Unlock()

		return Window{}, err
	}

	return a.commitLocked(w), nil
}

// Spillover returns the current window enlarged by factor and clamped to the limits.
func (a *Axis) Spillover(factor float64) Window {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Spillover(a.window, factor, a.limits)
}

// commitLocked stores w, bumps the generation, releases the lock and
// notifies listeners.
func (a *Axis) commitLocked(w Window) Window {
	a.window = w
	a.generation++
	gen := a.generation
	listeners := append([]ChangeFunc(nil), a.listeners...)
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(w, gen)
	}

	return w
}

package render

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/traveler/internal/clock"
)

// DefaultDebounceInterval is the quiet period before a full redraw.
const DefaultDebounceInterval = 150 * time.Millisecond

// ErrStopped is returned by Flush after Stop.
var ErrStopped = errors.New("render scheduler stopped")

// State is the scheduler state.
type State int

// Scheduler states.
const (
	// Settled means no full redraw is pending.
	Settled State = iota
	// PendingFull means a full redraw waits for the debounce timer.
	PendingFull
)

// String returns the state name.
func (s State) String() string {
	if s == PendingFull {
		return "pending_full"
	}

	return "settled"
}

// Drawer paints chart shapes.
type Drawer interface {
	DrawFull(shape *ChartShape)
	DrawQuick(shape *ChartShape, tr Transform)
}

// ShapeFunc recomputes the chart shape for a full redraw.
type ShapeFunc func() (*ChartShape, error)

// Options configures a Scheduler.
type Options struct {
	Debounce time.Duration
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Scheduler is the two-state redraw arbiter. RequestFull and RequestQuick
// are its only mutation entry points besides Flush and Stop.
type Scheduler struct {
	shape  ShapeFunc
	drawer Drawer
	opts   Options

	mu      sync.Mutex
	state   State
	timer   clock.Timer
	armed   uint64
	last    *ChartShape
	stopped bool

	// drawMu keeps full and quick draws from interleaving.
	drawMu sync.Mutex
}

// NewScheduler creates a settled scheduler.
func NewScheduler(shape ShapeFunc, drawer Drawer, opts Options) *Scheduler {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounceInterval
	}

	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Scheduler{shape: shape, drawer: drawer, opts: opts}
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Shape returns the shape of the last full redraw, or nil.
func (s *Scheduler) Shape() *ChartShape {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.last
}

// RequestFull arms or re-arms the debounce timer. A burst of requests
// results in one full redraw after the quiet period.
func (s *Scheduler) RequestFull() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}

	s.armed++
	seq := s.armed
	s.state = PendingFull
	s.timer = s.opts.Clock.AfterFunc(s.opts.Debounce, func() { s.fire(seq) })
}

// RequestQuick redraws synchronously from the last shape with patch
// applied. It reports whether a quick redraw ran. A patch that keeps the
// time domain and is not a vertical scroll is skipped. A vertical scroll
// leaving the last shape's location spillover also schedules a full redraw.
func (s *Scheduler) RequestQuick(patch Patch) bool {
	s.mu.Lock()

	last := s.last
	if s.stopped || last == nil {
		s.mu.Unlock()

		return false
	}

	if !patch.VerticalScroll && patch.Time == last.TimeWindow() {
		s.mu.Unlock()

		return false
	}

	s.mu.Unlock()

	if patch.VerticalScroll && !last.LocationSpillover.Contains(patch.Location) {
		s.RequestFull()
	}

	s.drawMu.Lock()
	s.drawer.DrawQuick(last, TransformFor(last, patch))
	s.drawMu.Unlock()

	return true
}

// Flush runs a pending full redraw immediately.
func (s *Scheduler) Flush() error {
	s.mu.Lock()

	if s.stopped {
		s.mu.Unlock()

		return ErrStopped
	}

	if s.state != PendingFull {
		s.mu.Unlock()

		return nil
	}

	s.timer.Stop()
	s.timer = nil
	s.state = Settled
	s.mu.Unlock()

	return s.runFull()
}

// Stop cancels any pending redraw. Later requests are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	s.state = Settled
	s.stopped = true
}

func (s *Scheduler) fire(seq uint64) {
	s.mu.Lock()

	if s.stopped || s.state != PendingFull || seq != s.armed {
		s.mu.Unlock()

		return
	}

	s.timer = nil
	s.state = Settled
	s.mu.Unlock()

	err := s.runFull()
	if err != nil {
		s.opts.Logger.Warn("render: full redraw failed", "error", err)
	}
}

func (s *Scheduler) runFull() error {
	shape, err := s.shape()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.last = shape
	s.mu.Unlock()

	s.drawMu.Lock()
	s.drawer.DrawFull(shape)
	s.drawMu.Unlock()

	return nil
}

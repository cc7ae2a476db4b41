// Package timeline wires the viewport, the render scheduler and the
// streaming interval cache into one interactive view.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/traveler/internal/axis"
	"github.com/Sumatoshi-tech/traveler/internal/clock"
	"github.com/Sumatoshi-tech/traveler/internal/intervalcache"
	"github.com/Sumatoshi-tech/traveler/internal/observability"
	"github.com/Sumatoshi-tech/traveler/internal/render"
	"github.com/Sumatoshi-tech/traveler/internal/snapshot"
	"github.com/Sumatoshi-tech/traveler/internal/traceapi"
	"github.com/Sumatoshi-tech/traveler/internal/viewport"
)

var (
	// ErrInvalidSize is returned for non-positive view dimensions.
	ErrInvalidSize = errors.New("invalid view size")
	// ErrNoSelection is returned when no primitive is selected.
	ErrNoSelection = errors.New("no primitive selected")
)

const (
	defaultPixelsPerBin      = 4
	defaultBandHeight        = 20
	defaultTimeSpillover     = 3
	defaultLocationSpillover = 2
)

// Options configures a View.
type Options struct {
	Dataset    string
	TimeLimits viewport.Window
	Locations  []string
	Width      float64
	Height     float64

	MinTimeWidth      float64
	PixelsPerBin      float64
	BandHeight        float64
	TimeSpillover     float64
	LocationSpillover float64

	Debounce time.Duration
	Clock    clock.Clock
	Logger   *slog.Logger
	// Cache carries the cache tuning. Its Clock, Logger and Listener are
	// set by the view.
	Cache  intervalcache.Options
	Drawer render.Drawer
}

func (o *Options) defaults() {
	if o.PixelsPerBin <= 0 {
		o.PixelsPerBin = defaultPixelsPerBin
	}

	if o.BandHeight <= 0 {
		o.BandHeight = defaultBandHeight
	}

	if o.TimeSpillover < 1 {
		o.TimeSpillover = defaultTimeSpillover
	}

	if o.LocationSpillover < 1 {
		o.LocationSpillover = defaultLocationSpillover
	}

	if o.MinTimeWidth <= 0 {
		o.MinTimeWidth = o.TimeLimits.Width() / 1e6
	}

	if o.Clock == nil {
		o.Clock = clock.Real{}
	}

	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	if o.Drawer == nil {
		o.Drawer = nopDrawer{}
	}
}

// View is one timeline: a viewport over time and locations whose changes
// drive quick redraws immediately, full redraws after a quiet period, and
// a re-scoped interval query when the spillover window moves.
type View struct {
	ctx    context.Context
	opts   Options
	logger *slog.Logger
	model  *viewport.Model
	sched  *render.Scheduler
	cache  *intervalcache.Cache

	mu        sync.Mutex
	width     float64
	height    float64
	locations []string
	status    intervalcache.Status
}

// NewView creates a view over client. ctx bounds every query the view
// issues; it is tagged with a fresh view id for logging.
func NewView(ctx context.Context, client traceapi.Client, opts Options) (*View, error) {
	opts.defaults()

	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: %gx%g", ErrInvalidSize, opts.Width, opts.Height)
	}

	locations := slices.Clone(opts.Locations)

	model, err := viewport.NewModel(viewport.Options{
		TimeLimits:       opts.TimeLimits,
		MinTimeWidth:     opts.MinTimeWidth,
		LocationExtent:   locationExtent(len(locations), opts.BandHeight),
		MinLocationWidth: opts.BandHeight,
	})
	if err != nil {
		return nil, fmt.Errorf("viewport: %w", err)
	}

	viewID := observability.NewViewID()

	v := &View{
		ctx:       observability.WithViewID(ctx, viewID),
		opts:      opts,
		logger:    opts.Logger,
		model:     model,
		width:     opts.Width,
		height:    opts.Height,
		locations: locations,
	}

	if _, err = model.Location.SetWindow(0, opts.Height); err != nil {
		return nil, fmt.Errorf("location window: %w", err)
	}

	cacheOpts := opts.Cache
	cacheOpts.Clock = opts.Clock
	cacheOpts.Logger = opts.Logger
	cacheOpts.Listener = intervalcache.Listener{
		Partial: func(*snapshot.Snapshot) { v.sched.RequestFull() },
		Commit:  func(*snapshot.Snapshot) { v.sched.RequestFull() },
		Status:  v.setStatus,
	}

	v.cache = intervalcache.New(client, cacheOpts)
	v.sched = render.NewScheduler(v.shape, opts.Drawer, render.Options{
		Debounce: opts.Debounce,
		Clock:    opts.Clock,
		Logger:   opts.Logger,
	})

	model.Time.OnChange(v.timeChanged)
	model.Location.OnChange(func(w viewport.Window, _ uint64) {
		v.changed(render.Patch{Time: v.TimeWindow(), Location: w, VerticalScroll: true})
	})

	return v, nil
}

// Cache returns the view's interval cache.
func (v *View) Cache() *intervalcache.Cache {
	return v.cache
}

// Scheduler returns the view's render scheduler.
func (v *View) Scheduler() *render.Scheduler {
	return v.sched
}

// TimeWindow returns the visible time window.
func (v *View) TimeWindow() viewport.Window {
	return v.model.Time.Window()
}

// LocationWindow returns the visible vertical pixel window.
func (v *View) LocationWindow() viewport.Window {
	return v.model.Location.Window()
}

// Status returns the last status reported by the cache.
func (v *View) Status() intervalcache.Status {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.status
}

// SetTimeWindow shows [begin, end], clamped to the limits.
func (v *View) SetTimeWindow(begin, end float64) error {
	_, err := v.model.Time.SetWindow(begin, end)

	return err
}

// Pan shifts the time window by delta.
func (v *View) Pan(delta float64) error {
	_, err := v.model.Time.Pan(delta)

	return err
}

// Zoom scales the time window by factor around anchor.
func (v *View) Zoom(factor, anchor float64) error {
	_, err := v.model.Time.Zoom(factor, anchor)

	return err
}

// ScrollTo moves the top of the vertical window to pixel y.
func (v *View) ScrollTo(y float64) error {
	v.mu.Lock()
	height := v.height
	v.mu.Unlock()

	_, err := v.model.Location.SetWindow(y, y+height)

	return err
}

// SetSize resizes the drawing area. Only a full redraw follows.
func (v *View) SetSize(width, height float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %gx%g", ErrInvalidSize, width, height)
	}

	v.mu.Lock()
	v.width, v.height = width, height
	v.mu.Unlock()

	top := v.LocationWindow().Begin
	if _, err := v.model.Location.SetWindow(top, top+height); err != nil {
		return err
	}

	v.sched.RequestFull()

	return nil
}

// SetLocations replaces the ordered location list.
func (v *View) SetLocations(locations []string) error {
	v.mu.Lock()
	v.locations = slices.Clone(locations)
	extent := locationExtent(len(locations), v.opts.BandHeight)
	v.mu.Unlock()

	if _, err := v.model.Location.SetLimits(viewport.Window{Begin: 0, End: extent}, v.opts.BandHeight); err != nil {
		return err
	}

	v.sched.RequestFull()

	return nil
}

// Refresh runs a full redraw now, issuing a query if the scope moved.
func (v *View) Refresh() error {
	v.sched.RequestFull()

	return v.sched.Flush()
}

// Settle refreshes, waits for the running query to finish and redraws the
// result. It returns the final status.
func (v *View) Settle(ctx context.Context) (intervalcache.Status, error) {
	err := v.Refresh()
	if err != nil {
		return intervalcache.Status{}, err
	}

	select {
	case <-v.cache.Done():
	case <-ctx.Done():
		return intervalcache.Status{}, fmt.Errorf("settle view: %w", ctx.Err())
	}

	err = v.sched.Flush()
	if err != nil {
		return intervalcache.Status{}, err
	}

	return v.cache.Status(), nil
}

// Close stops pending redraws.
func (v *View) Close() {
	v.sched.Stop()
}

func (v *View) changed(patch render.Patch) {
	v.sched.RequestQuick(patch)
	v.sched.RequestFull()
}

// timeChanged redraws after a time window change. A window that leaves the
// running query's scope supersedes that query at once instead of waiting for
// the debounced full redraw.
func (v *View) timeChanged(w viewport.Window, generation uint64) {
	v.changed(render.Patch{Time: w, Location: v.LocationWindow()})

	scope, ok := v.cache.Scope()
	if !ok || (viewport.Window{Begin: scope.Begin, End: scope.End}).Contains(w) {
		return
	}

	v.logger.DebugContext(v.ctx, "timeline: window left query scope",
		"generation", generation, "window", w.String())

	err := v.sched.Flush()
	if err != nil {
		v.logger.WarnContext(v.ctx, "timeline: rescope failed", "error", err)
	}
}

func (v *View) setStatus(st intervalcache.Status) {
	v.mu.Lock()
	v.status = st
	v.mu.Unlock()

	if st.Phase == intervalcache.PhaseError {
		v.logger.WarnContext(v.ctx, "timeline: query failed", "message", st.Message)
	}
}

// shape recomputes scales and spillover windows and re-scopes the query
// when the spillover moved. A query left loading is re-issued.
func (v *View) shape() (*render.ChartShape, error) {
	v.mu.Lock()
	width, height := v.width, v.height
	locations := v.locations
	v.mu.Unlock()

	timeWindow := v.model.Time.Window()
	locWindow := v.model.Location.Window()
	timeSpill := v.model.Time.Spillover(v.opts.TimeSpillover)
	locSpill := v.model.Location.Spillover(v.opts.LocationSpillover)

	band := axis.NewBand(locations, 0, locationExtent(len(locations), v.opts.BandHeight))

	scope := intervalcache.Scope{Dataset: v.opts.Dataset, Begin: timeSpill.Begin, End: timeSpill.End}
	if scoped := band.InvertRange(locSpill.Begin, locSpill.End); len(scoped) < band.Len() {
		scope.Locations = slices.Clone(scoped)
	}

	last, ok := v.cache.Scope()

	switch {
	case !ok || !last.Equal(scope):
		err := v.cache.BeginQuery(v.ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("begin query: %w", err)
		}
	case v.cache.State() == intervalcache.Loading:
		err := v.cache.Retry(v.ctx)
		if err != nil {
			return nil, fmt.Errorf("retry query: %w", err)
		}
	}

	return &render.ChartShape{
		Width:             width,
		Height:            height,
		BinCount:          max(1, int(width/v.opts.PixelsPerBin)),
		Time:              axis.NewLinear(timeWindow.Begin, timeWindow.End, 0, width),
		Locations:         band,
		Visible:           band.InvertRange(locWindow.Begin, locWindow.End),
		LocationWindow:    locWindow,
		TimeSpillover:     timeSpill,
		LocationSpillover: locSpill,
		Data:              v.cache.View(),
	}, nil
}

// locationExtent is the vertical pixel extent of n bands, never zero so an
// empty location list still yields a valid axis.
func locationExtent(n int, bandHeight float64) float64 {
	return float64(max(n, 1)) * bandHeight
}

type nopDrawer struct{}

func (nopDrawer) DrawFull(*render.ChartShape) {}

func (nopDrawer) DrawQuick(*render.ChartShape, render.Transform) {}

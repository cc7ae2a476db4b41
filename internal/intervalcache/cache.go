// Package intervalcache keeps one authoritative interval query per view and
// merges its streamed records into an immutable snapshot that drawing code
// can read at any time.
package intervalcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/traveler/internal/clock"
	"github.com/Sumatoshi-tech/traveler/internal/observability"
	"github.com/Sumatoshi-tech/traveler/internal/snapshot"
	tr "github.com/Sumatoshi-tech/traveler/internal/trace"
	"github.com/Sumatoshi-tech/traveler/internal/traceapi"
)

// ErrSuperseded is returned to a stream whose query was replaced by a newer one.
var ErrSuperseded = errors.New("query superseded")

// ErrNoScope is returned by Retry before any query was issued.
var ErrNoScope = errors.New("no query to retry")

const (
	// DefaultRenderCutoff is the largest interval count drawn without prompting.
	DefaultRenderCutoff int64 = 50000
	// DefaultThrottleInterval separates partial redraws while streaming.
	DefaultThrottleInterval = time.Second

	probeBins  = 1
	tracerName = "traveler/intervalcache"
)

// Listener receives redraw requests. Any field may be nil. Callbacks run on
// the goroutine that caused them and never under the cache lock.
type Listener struct {
	// Partial receives the union of committed and in-flight records, at
	// most once per throttle interval while a stream is running.
	Partial func(view *snapshot.Snapshot)
	// Commit receives the new committed snapshot after a stream completed
	// or a probe short-circuited.
	Commit func(committed *snapshot.Snapshot)
	// Status receives every status change.
	Status func(st Status)
}

// Options configures a Cache.
type Options struct {
	RenderCutoff     int64
	ThrottleInterval time.Duration
	Clock            clock.Clock
	Logger           *slog.Logger
	Tracer           trace.Tracer
	Metrics          *observability.CacheMetrics
	Listener         Listener
}

type query struct {
	gen      uint64
	scope    Scope
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once
	terminal bool
}

func (q *query) closeDone() {
	q.doneOnce.Do(func() { close(q.done) })
}

// Cache is the streaming interval cache of one view.
type Cache struct {
	client traceapi.Client
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer

	committed atomic.Pointer[snapshot.Snapshot]

	mu           sync.Mutex
	gen          uint64
	cur          *query
	inflight     *snapshot.Builder
	state        State
	err          error
	probeCount   int64
	lastPartial  time.Time
	partialTimer clock.Timer
}

// New creates an idle cache over client.
func New(client traceapi.Client, opts Options) *Cache {
	if opts.RenderCutoff <= 0 {
		opts.RenderCutoff = DefaultRenderCutoff
	}

	if opts.ThrottleInterval <= 0 {
		opts.ThrottleInterval = DefaultThrottleInterval
	}

	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}

	c := &Cache{client: client, opts: opts, logger: opts.Logger, tracer: opts.Tracer}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	if c.tracer == nil {
		c.tracer = noop.NewTracerProvider().Tracer(tracerName)
	}

	c.committed.Store(snapshot.Empty())

	return c
}

// Committed returns the committed snapshot. It is never nil and never
// mutated after being returned.
func (c *Cache) Committed() *snapshot.Snapshot {
	return c.committed.Load()
}

// View returns the committed snapshot merged with records of the running
// stream, if any.
func (c *Cache) View() *snapshot.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.viewLocked()
}

// State returns the current query state.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Status returns the consumer-facing status.
func (c *Cache) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.statusLocked()
}

// Scope returns the scope of the last query.
func (c *Cache) Scope() (Scope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur == nil {
		return Scope{}, false
	}

	return c.cur.scope, true
}

// Done returns a channel closed once the current query reaches a terminal
// state or is superseded. Before the first query it is already closed.
func (c *Cache) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur == nil {
		ch := make(chan struct{})
		close(ch)

		return ch
	}

	return c.cur.done
}

// Retry re-issues the last scope.
func (c *Cache) Retry(ctx context.Context) error {
	scope, ok := c.Scope()
	if !ok {
		return ErrNoScope
	}

	return c.BeginQuery(ctx, scope)
}

// BeginQuery makes scope the authoritative query. It cancels the previous
// stream, runs the cardinality probe synchronously and, when the count is
// within the cutoff, starts streaming in the background. Query failures are
// reported through Status; the returned error only covers invalid scopes.
func (c *Cache) BeginQuery(ctx context.Context, scope Scope) error {
	err := scope.Validate()
	if err != nil {
		return err
	}

	q, qctx := c.supersede(ctx, scope)

	qctx, span := c.tracer.Start(qctx, "intervalcache.query", trace.WithAttributes(
		attribute.String("dataset", scope.Dataset),
		attribute.Float64("begin", scope.Begin),
		attribute.Float64("end", scope.End),
		attribute.Int("locations", len(scope.Locations)),
		attribute.Int64("generation", int64(q.gen)),
	))

	c.opts.Metrics.QueryStarted(qctx)
	c.logger.DebugContext(qctx, "intervalcache: query started",
		"gen", q.gen, "begin", scope.Begin, "end", scope.End)

	bins, err := c.client.Histogram(qctx, scope.Dataset, probeBins, scope.Begin, scope.End)
	if err != nil {
		c.resolveError(qctx, span, q, fmt.Errorf("probe: %w", err))

		return nil
	}

	count := traceapi.TotalCount(bins)
	span.SetAttributes(attribute.Int64("probe.count", count))

	switch {
	case count == 0:
		c.opts.Metrics.Probe(qctx, observability.ProbeEmpty)
		c.finish(qctx, q, Empty, nil, snapshot.Empty(), count)
		span.End()

		return nil
	case count > c.opts.RenderCutoff:
		c.opts.Metrics.Probe(qctx, observability.ProbeOverCutoff)
		c.finish(qctx, q, OverCutoff, nil, snapshot.Empty(), count)
		span.End()

		return nil
	}

	c.opts.Metrics.Probe(qctx, observability.ProbeStream)

	if !c.startStreaming(q, count) {
		span.End()

		return nil
	}

	go c.stream(qctx, span, q)

	return nil
}

// supersede installs a new current query and cancels the previous one. The
// returned context outlives BeginQuery and is cancelled by the next query.
func (c *Cache) supersede(ctx context.Context, scope Scope) (*query, context.Context) {
	qctx, cancel := context.WithCancel(ctx)
	q := &query{scope: scope, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()

	prev := c.cur
	prevLive := prev != nil && !prev.terminal

	c.gen++
	q.gen = c.gen
	c.cur = q
	c.inflight = nil
	c.err = nil
	c.stopPartialLocked()
	c.state = Probing
	st := c.statusLocked()

	c.mu.Unlock()

	if prev != nil {
		prev.cancel()

		if prevLive {
			c.opts.Metrics.QuerySuperseded(ctx)
		}

		prev.closeDone()
	}

	c.notifyStatus(st)

	return q, qctx
}

func (c *Cache) startStreaming(q *query, count int64) bool {
	c.mu.Lock()

	if q.gen != c.gen {
		c.mu.Unlock()

		return false
	}

	c.inflight = snapshot.NewBuilder()
	c.probeCount = count
	c.lastPartial = time.Time{}
	c.state = Streaming
	st := c.statusLocked()

	c.mu.Unlock()

	c.notifyStatus(st)

	return true
}

func (c *Cache) stream(ctx context.Context, span trace.Span, q *query) {
	defer span.End()

	start := c.opts.Clock.Now()

	err := c.client.Intervals(ctx, q.scope.Query(), func(chunk []tr.Interval) error {
		return c.merge(ctx, q.gen, chunk)
	})

	c.opts.Metrics.StreamFinished(ctx, c.opts.Clock.Now().Sub(start))

	if !c.current(q.gen) {
		c.logger.DebugContext(ctx, "intervalcache: stream superseded", "gen", q.gen)

		return
	}

	if err != nil {
		c.resolveError(ctx, span, q, fmt.Errorf("stream: %w", err))

		return
	}

	c.commit(ctx, q)
}

// merge writes one chunk into the in-flight snapshot of generation gen.
func (c *Cache) merge(ctx context.Context, gen uint64, chunk []tr.Interval) error {
	c.mu.Lock()

	if gen != c.gen || c.inflight == nil {
		c.mu.Unlock()

		return ErrSuperseded
	}

	c.inflight.PutAll(chunk)

	var view *snapshot.Snapshot
	if c.partialDueLocked(gen) {
		view = c.viewLocked()
	}

	c.mu.Unlock()

	c.opts.Metrics.RecordsMerged(ctx, len(chunk))

	if view != nil && c.opts.Listener.Partial != nil {
		c.opts.Listener.Partial(view)
	}

	return nil
}

// partialDueLocked reports whether a partial redraw may run now. When the
// throttle interval has not elapsed it arms a trailing redraw instead.
func (c *Cache) partialDueLocked(gen uint64) bool {
	now := c.opts.Clock.Now()
	interval := c.opts.ThrottleInterval

	elapsed := now.Sub(c.lastPartial)
	if c.lastPartial.IsZero() || elapsed >= interval {
		c.lastPartial = now

		return true
	}

	if c.partialTimer == nil {
		c.partialTimer = c.opts.Clock.AfterFunc(interval-elapsed, func() { c.trailingPartial(gen) })
	}

	return false
}

func (c *Cache) trailingPartial(gen uint64) {
	c.mu.Lock()

	if gen != c.gen || c.state != Streaming {
		c.mu.Unlock()

		return
	}

	c.partialTimer = nil
	c.lastPartial = c.opts.Clock.Now()
	view := c.viewLocked()

	c.mu.Unlock()

	if c.opts.Listener.Partial != nil {
		c.opts.Listener.Partial(view)
	}
}

func (c *Cache) commit(ctx context.Context, q *query) {
	c.mu.Lock()

	if q.gen != c.gen || c.inflight == nil {
		c.mu.Unlock()

		return
	}

	next := c.inflight.Build()

	c.mu.Unlock()

	c.finish(ctx, q, Ready, nil, next, -1)
}

func (c *Cache) resolveError(ctx context.Context, span trace.Span, q *query, err error) {
	if !c.current(q.gen) {
		span.End()

		return
	}

	if errors.Is(err, traceapi.ErrStillLoading) {
		c.opts.Metrics.Probe(ctx, observability.ProbeLoading)
		c.logger.InfoContext(ctx, "intervalcache: dataset still loading", "gen", q.gen)
		c.finish(ctx, q, Loading, err, nil, -1)
		span.End()

		return
	}

	c.opts.Metrics.Probe(ctx, observability.ProbeFailed)
	observability.RecordSpanError(span, err)
	c.logger.WarnContext(ctx, "intervalcache: query failed", "gen", q.gen, "error", err)
	c.finish(ctx, q, Failed, err, nil, -1)
	span.End()
}

// finish moves q into a terminal state. A non-nil next replaces the committed
// snapshot. It reports false when q was already superseded.
func (c *Cache) finish(ctx context.Context, q *query, state State, err error, next *snapshot.Snapshot, count int64) bool {
	c.mu.Lock()

	if q.gen != c.gen {
		c.mu.Unlock()

		return false
	}

	if next != nil {
		c.committed.Store(next)
	}

	if count >= 0 {
		c.probeCount = count
	}

	c.inflight = nil
	c.stopPartialLocked()
	c.state = state
	c.err = err
	q.terminal = true
	st := c.statusLocked()

	c.mu.Unlock()

	if next != nil {
		c.opts.Metrics.Committed(ctx)
		c.logger.DebugContext(ctx, "intervalcache: committed", "gen", q.gen, "state", state.String(), "intervals", next.Len())

		if c.opts.Listener.Commit != nil {
			c.opts.Listener.Commit(next)
		}
	}

	c.notifyStatus(st)
	q.cancel()
	q.closeDone()

	return true
}

func (c *Cache) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return gen == c.gen
}

func (c *Cache) viewLocked() *snapshot.Snapshot {
	committed := c.committed.Load()
	if c.inflight == nil || c.inflight.Len() == 0 {
		return committed
	}

	return snapshot.Union(committed, c.inflight.Snapshot())
}

func (c *Cache) statusLocked() Status {
	return statusFor(c.state, c.probeCount, c.opts.RenderCutoff, c.err)
}

func (c *Cache) stopPartialLocked() {
	if c.partialTimer != nil {
		c.partialTimer.Stop()
		c.partialTimer = nil
	}
}

func (c *Cache) notifyStatus(st Status) {
	if c.opts.Listener.Status != nil {
		c.opts.Listener.Status(st)
	}
}

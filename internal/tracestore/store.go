package tracestore

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/traveler/internal/snapshot"
	"github.com/Sumatoshi-tech/traveler/internal/trace"
	"github.com/Sumatoshi-tech/traveler/internal/traceapi"
)

// streamChunkSize is the number of intervals handed to a ChunkFunc at once.
const streamChunkSize = 256

// slot tracks one dataset through loading.
type slot struct {
	ds      *Dataset
	loading bool
	err     error
}

// Store holds named datasets and serves them through traceapi.Client.
// It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	datasets map[string]*slot
	logger   *slog.Logger
}

var _ traceapi.Client = (*Store)(nil)

// New creates an empty store. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{datasets: make(map[string]*slot), logger: logger}
}

// Add indexes intervals under id, replacing any previous dataset. Duplicate
// keys keep the last record.
func (s *Store) Add(id string, ivs []trace.Interval) *Dataset {
	ds := NewDataset(id, snapshot.FromIntervals(ivs).Intervals())

	s.mu.Lock()
	s.datasets[id] = &slot{ds: ds}
	s.mu.Unlock()

	return ds
}

// LoadFile reads an NDJSON (optionally LZ4-framed) trace file into id.
func (s *Store) LoadFile(ctx context.Context, id, path string) (*Dataset, error) {
	start := time.Now()

	snap, err := snapshot.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", id, err)
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	ds := NewDataset(id, snap.Intervals())

	s.mu.Lock()
	s.datasets[id] = &slot{ds: ds}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "tracestore: dataset loaded",
		"dataset", id, "path", path, "intervals", ds.Len(),
		"locations", len(ds.Locations()), "duration", time.Since(start))

	return ds, nil
}

// LoadAsync starts loading path into id in the background. Until the load
// finishes every query for id reports traceapi.ErrStillLoading. The
// returned channel receives the load result and is then closed.
func (s *Store) LoadAsync(ctx context.Context, id, path string) <-chan error {
	s.mu.Lock()
	s.datasets[id] = &slot{loading: true}
	s.mu.Unlock()

	done := make(chan error, 1)

	go func() {
		defer close(done)

		_, err := s.LoadFile(ctx, id, path)
		if err != nil {
			s.mu.Lock()
			s.datasets[id] = &slot{err: err}
			s.mu.Unlock()

			s.logger.ErrorContext(ctx, "tracestore: dataset load failed", "dataset", id, "error", err)
		}

		done <- err
	}()

	return done
}

// MarkLoading makes id report traceapi.ErrStillLoading until replaced.
func (s *Store) MarkLoading(id string) {
	s.mu.Lock()
	s.datasets[id] = &slot{loading: true}
	s.mu.Unlock()
}

// Ready reports whether every registered dataset finished loading.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sl := range s.datasets {
		if sl.loading {
			return false
		}
	}

	return true
}

// IDs returns the sorted dataset ids.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.datasets))
	for id := range s.datasets {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Dataset returns a loaded dataset.
func (s *Store) Dataset(id string) (*Dataset, error) {
	s.mu.RLock()
	sl, ok := s.datasets[id]
	s.mu.RUnlock()

	switch {
	case !ok:
		return nil, fmt.Errorf("%w: %q", traceapi.ErrUnknownDataset, id)
	case sl.loading:
		return nil, fmt.Errorf("dataset %q: %w", id, traceapi.ErrStillLoading)
	case sl.err != nil:
		return nil, fmt.Errorf("%w: dataset %q: %w", traceapi.ErrQueryFailed, id, sl.err)
	default:
		return sl.ds, nil
	}
}

// Histogram implements traceapi.Client.
func (s *Store) Histogram(_ context.Context, dataset string, bins int, begin, end float64) ([]traceapi.Bin, error) {
	ds, err := s.Dataset(dataset)
	if err != nil {
		return nil, err
	}

	if err = checkRange(bins, begin, end); err != nil {
		return nil, err
	}

	width := (end - begin) / float64(bins)
	out := make([]traceapi.Bin, bins)

	for i := range out {
		out[i].Begin = begin + float64(i)*width
		out[i].End = begin + float64(i+1)*width
	}

	out[bins-1].End = end

	ds.index.Overlapping(begin, end, func(iv trace.Interval) bool {
		first := binOf(max(begin, iv.Enter), begin, width, bins)
		last := binOf(min(end, iv.Leave), begin, width, bins)

		for b := first; b <= last; b++ {
			out[b].Count++
		}

		return true
	})

	return out, nil
}

// Intervals implements traceapi.Client.
func (s *Store) Intervals(ctx context.Context, q traceapi.IntervalQuery, fn traceapi.ChunkFunc) error {
	ds, err := s.Dataset(q.Dataset)
	if err != nil {
		return err
	}

	var allowed map[string]struct{}

	if len(q.Locations) > 0 {
		allowed = make(map[string]struct{}, len(q.Locations))
		for _, loc := range q.Locations {
			allowed[loc] = struct{}{}
		}
	}

	chunk := make([]trace.Interval, 0, streamChunkSize)

	var streamErr error

	ds.index.Overlapping(q.Begin, q.End, func(iv trace.Interval) bool {
		if allowed != nil {
			if _, ok := allowed[iv.Location]; !ok {
				return true
			}
		}

		chunk = append(chunk, iv)
		if len(chunk) < streamChunkSize {
			return true
		}

		if streamErr = ctx.Err(); streamErr != nil {
			return false
		}

		streamErr = fn(chunk)
		chunk = make([]trace.Interval, 0, streamChunkSize)

		return streamErr == nil
	})

	if streamErr != nil {
		return streamErr
	}

	if len(chunk) > 0 {
		return fn(chunk)
	}

	return nil
}

// PrimitiveTraceForward implements traceapi.Client. The node id is the
// primitive name; the payload lists its direct child occurrences per
// location, each with the child primitive's utilization series.
func (s *Store) PrimitiveTraceForward(
	_ context.Context, dataset, nodeID string, bins int, begin, end float64,
) (traceapi.Forward, error) {
	ds, err := s.Dataset(dataset)
	if err != nil {
		return nil, err
	}

	if err = checkRange(bins, begin, end); err != nil {
		return nil, err
	}

	if !ds.hasPrimitive(nodeID) {
		return nil, fmt.Errorf("%w: %q", traceapi.ErrUnknownPrimitive, nodeID)
	}

	fwd := make(traceapi.Forward)

	kids, ok := ds.children[nodeID]
	if !ok {
		return fwd, nil
	}

	type utilKey struct{ primitive, location string }

	utilCache := make(map[utilKey][]float64)

	kids.Overlapping(begin, end, func(iv trace.Interval) bool {
		key := utilKey{iv.Primitive, iv.Location}

		util, cached := utilCache[key]
		if !cached {
			util, _ = ds.utilization(iv.Primitive, iv.Location, bins, begin, end, IntervalMode)
			utilCache[key] = util
		}

		fwd[iv.Location] = append(fwd[iv.Location], traceapi.ForwardRecord{
			Name:      iv.Primitive,
			StartTime: iv.Enter,
			EndTime:   iv.Leave,
			Util:      util,
		})

		return true
	})

	return fwd, nil
}

// UtilizationHistogram implements traceapi.Client. Locations where the
// primitive never runs are omitted from the result.
func (s *Store) UtilizationHistogram(
	_ context.Context, dataset, primitive string, locations []string, bins int, begin, end float64,
) (map[string][]float64, error) {
	ds, err := s.Dataset(dataset)
	if err != nil {
		return nil, err
	}

	if err = checkRange(bins, begin, end); err != nil {
		return nil, err
	}

	if !ds.hasPrimitive(primitive) {
		return nil, fmt.Errorf("%w: %q", traceapi.ErrUnknownPrimitive, primitive)
	}

	return ds.ganttHistogram(primitive, locations, bins, begin, end, IntervalMode), nil
}

// MergedUtilization implements traceapi.Client.
func (s *Store) MergedUtilization(
	_ context.Context, dataset, primitive string, mode traceapi.UtilMode, bins int, begin, end float64,
) ([]float64, error) {
	ds, err := s.Dataset(dataset)
	if err != nil {
		return nil, err
	}

	if err = checkRange(bins, begin, end); err != nil {
		return nil, err
	}

	if !ds.hasPrimitive(primitive) {
		return nil, fmt.Errorf("%w: %q", traceapi.ErrUnknownPrimitive, primitive)
	}

	sparse, err := sparseMode(mode)
	if err != nil {
		return nil, err
	}

	return ds.MergedUtilization(primitive, sparse, bins, begin, end), nil
}

func sparseMode(mode traceapi.UtilMode) (UtilMode, error) {
	switch mode {
	case "", traceapi.ModeInterval:
		return IntervalMode, nil
	case traceapi.ModeMetric:
		return MetricMode, nil
	default:
		return 0, fmt.Errorf("%w: mode=%q", traceapi.ErrInvalidQuery, mode)
	}
}

func checkRange(bins int, begin, end float64) error {
	if bins <= 0 || end < begin || math.IsNaN(begin) || math.IsNaN(end) {
		return fmt.Errorf("%w: bins=%d range [%g, %g]", traceapi.ErrInvalidQuery, bins, begin, end)
	}

	return nil
}

func binOf(t, begin, width float64, bins int) int {
	if width <= 0 {
		return 0
	}

	return max(0, min(int(math.Floor((t-begin)/width)), bins-1))
}

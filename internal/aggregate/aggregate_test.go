package aggregate_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/traveler/internal/aggregate"
	"github.com/Sumatoshi-tech/traveler/internal/trace"
	"github.com/Sumatoshi-tech/traveler/internal/traceapi"
)

const (
	locA = "0-0"
	locB = "0-1"
)

var (
	tenBins       = aggregate.Bins{DomainBegin: 0, DomainEnd: 100, Count: 10}
	errSourceDown = errors.New("source down")
)

type countingSource struct {
	mu    sync.Mutex
	calls map[string]int
	util  map[string]map[string][]float64
	err   error
}

func (s *countingSource) Utilization(
	_ context.Context, primitive string, _ []string, _ aggregate.Bins,
) (map[string][]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.calls == nil {
		s.calls = make(map[string]int)
	}

	s.calls[primitive]++

	if s.err != nil {
		return nil, s.err
	}

	return s.util[primitive], nil
}

func newNode(t *testing.T, children ...trace.Node) (*trace.Arena, trace.NodeID) {
	t.Helper()

	arena := trace.NewArena()
	root := arena.AddRoot("main", "n0")

	for _, c := range children {
		_, err := arena.AddChild(root, c.Name, c.Location, c.Enter, c.Leave, c.Util)
		require.NoError(t, err)
	}

	return arena, root
}

func TestBins_Index(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2, tenBins.Index(25))
	assert.Equal(t, 5, tenBins.Index(55))
	assert.Equal(t, 0, tenBins.Index(-5))
	assert.Equal(t, 9, tenBins.Index(100))
	assert.Equal(t, 9, tenBins.Index(1e9))
	assert.InDelta(t, 30.0, tenBins.Begin(3), 1e-9)

	prev := 0
	for tm := 0.0; tm <= 100; tm += 0.5 {
		i := tenBins.Index(tm)
		assert.GreaterOrEqual(t, i, prev)
		assert.Less(t, i, tenBins.Count)

		prev = i
	}
}

func TestBins_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, tenBins.Validate())
	require.ErrorIs(t, aggregate.Bins{DomainEnd: 1}.Validate(), aggregate.ErrInvalidBins)
	require.ErrorIs(t, aggregate.Bins{DomainBegin: 5, DomainEnd: 5, Count: 2}.Validate(), aggregate.ErrInvalidBins)
}

func TestAggregate_SingleChild(t *testing.T) {
	t.Parallel()

	arena, root := newNode(t, trace.Node{Name: "work", Location: locA, Enter: 25, Leave: 55})

	res, err := aggregate.New(nil, nil).Aggregate(context.Background(), arena, root, tenBins)
	require.NoError(t, err)

	want := []float64{0, 0, 1, 1, 1, 1, 0, 0, 0, 0}
	assert.Equal(t, want, res.PerLocation[locA])
	assert.Equal(t, want, res.Merged)
	assert.Empty(t, res.Labels)

	node, ok := arena.Node(root)
	require.True(t, ok)
	assert.Equal(t, want, node.Util.Values)
	assert.True(t, node.Util.Fits(0, 100, 10))
}

func TestAggregate_MergedNeverExceedsLocationCount(t *testing.T) {
	t.Parallel()

	arena, root := newNode(t,
		trace.Node{Name: "a", Location: locA, Enter: 0, Leave: 40},
		trace.Node{Name: "b", Location: locA, Enter: 10, Leave: 30},
		trace.Node{Name: "c", Location: locB, Enter: 20, Leave: 60},
		trace.Node{Name: "late", Location: locB, Enter: 200, Leave: 300},
	)

	res, err := aggregate.New(nil, nil).Aggregate(context.Background(), arena, root, tenBins)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 2, 2, 2, 1, 0, 0, 0, 0, 0}, res.PerLocation[locA])
	assert.Equal(t, []float64{0, 0, 1, 1, 1, 1, 1, 0, 0, 0}, res.PerLocation[locB])
	assert.Equal(t, []float64{1, 1, 2, 2, 2, 1, 1, 0, 0, 0}, res.Merged)
	assert.Equal(t, []string{locA, locB}, res.Locations)

	for _, v := range res.Merged {
		assert.LessOrEqual(t, v, res.Bound())
	}

	assert.Equal(t, []float64{1, 2, 2, 2, 1, 0, 0, 0, 0, 0},
		aggregate.ClampSeries(res.PerLocation[locA], res.Bound()))
	assert.Equal(t, []float64{1, 1, 1}, aggregate.ClampSeries([]float64{1, 3, 1}, 1))
}

func TestAggregate_Labels(t *testing.T) {
	t.Parallel()

	bins := aggregate.Bins{DomainBegin: 0, DomainEnd: 100, Count: 100}
	arena, root := newNode(t,
		trace.Node{Name: "long", Location: locA, Enter: 10, Leave: 20},
		trace.Node{Name: "short", Location: locA, Enter: 30, Leave: 38},
		// Touches ten bins but covers only nine and a half.
		trace.Node{Name: "straddling", Location: locA, Enter: 40, Leave: 49.5},
		trace.Node{Name: "clipped", Location: locB, Enter: -50, Leave: 5},
	)

	res, err := aggregate.New(nil, nil).Aggregate(context.Background(), arena, root, bins)
	require.NoError(t, err)

	require.Len(t, res.Labels, 1)
	assert.Equal(t, aggregate.Label{Name: "long", Location: locA, StartBin: 10, EndBin: 20}, res.Labels[0])
}

func TestAggregate_SourceFetchedOncePerPrimitive(t *testing.T) {
	t.Parallel()

	half := []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	src := &countingSource{util: map[string]map[string][]float64{
		"work": {locA: half},
	}}

	arena, root := newNode(t,
		trace.Node{Name: "work", Location: locA, Enter: 0, Leave: 15},
		trace.Node{Name: "work", Location: locA, Enter: 50, Leave: 55},
		trace.Node{Name: "work", Location: locB, Enter: 0, Leave: 5},
	)

	res, err := aggregate.New(src, nil).Aggregate(context.Background(), arena, root, tenBins)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls["work"])
	assert.Equal(t, []float64{0.5, 0.5, 0, 0, 0, 0.5, 0, 0, 0, 0}, res.PerLocation[locA])
	// No data for locB falls back to a weight of 1.
	assert.Equal(t, []float64{1, 0, 0, 0, 0, 0, 0, 0, 0, 0}, res.PerLocation[locB])
}

func TestAggregate_SourceError(t *testing.T) {
	t.Parallel()

	arena, root := newNode(t, trace.Node{Name: "work", Location: locA, Enter: 0, Leave: 15})

	_, err := aggregate.New(&countingSource{err: errSourceDown}, nil).Aggregate(context.Background(), arena, root, tenBins)
	require.ErrorIs(t, err, errSourceDown)
}

func TestAggregate_UnknownNode(t *testing.T) {
	t.Parallel()

	_, err := aggregate.New(nil, nil).Aggregate(context.Background(), trace.NewArena(), 3, tenBins)
	require.ErrorIs(t, err, trace.ErrUnknownNode)
}

func TestCachedSource(t *testing.T) {
	t.Parallel()

	src := &countingSource{util: map[string]map[string][]float64{"work": {locA: {1, 2}}}}
	cached := aggregate.NewCachedSource(src, 4, nil)
	bins := aggregate.Bins{DomainBegin: 0, DomainEnd: 10, Count: 2}

	first, err := cached.Utilization(context.Background(), "work", []string{locA}, bins)
	require.NoError(t, err)

	first[locA][0] = 99

	second, err := cached.Utilization(context.Background(), "work", []string{locA}, bins)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, second[locA])

	_, err = cached.Utilization(context.Background(), "work", []string{locA}, tenBins)
	require.NoError(t, err)

	assert.Equal(t, 2, src.calls["work"])

	stats := cached.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
}

func TestFromForward(t *testing.T) {
	t.Parallel()

	fwd := traceapi.Forward{
		locB: {{Name: "io", StartTime: 5, EndTime: 9}},
		locA: {
			{Name: "work", StartTime: 0, EndTime: 4, Util: []float64{1}},
			{Name: "work", StartTime: 6, EndTime: 8},
		},
	}

	oneBin := aggregate.Bins{DomainBegin: 0, DomainEnd: 10, Count: 1}

	arena, root, err := aggregate.FromForward("main", "n7", fwd, oneBin)
	require.NoError(t, err)

	node, ok := arena.Node(root)
	require.True(t, ok)
	assert.Equal(t, "n7", node.NodeID)

	kids := arena.Children(root)
	require.Len(t, kids, 3)
	assert.Equal(t, locA, kids[0].Location)
	assert.Equal(t, []float64{1}, kids[0].Util.Values)
	assert.True(t, kids[0].Util.Fits(0, 10, 1))
	assert.Equal(t, "io", kids[2].Name)

	_, _, err = aggregate.FromForward("main", "n7", traceapi.Forward{locA: {{Name: "bad", StartTime: 9, EndTime: 1}}}, oneBin)
	require.ErrorIs(t, err, traceapi.ErrQueryFailed)
	require.ErrorIs(t, err, trace.ErrInvertedInterval)
}

func TestAggregate_LabelThreshold(t *testing.T) {
	t.Parallel()

	arena, root := newNode(t, trace.Node{Name: "work", Location: locA, Enter: 25, Leave: 55})

	agg := aggregate.New(nil, nil)

	// [25, 55] covers exactly three bins of width 10 while touching four.
	agg.SetLabelMinBins(3)

	res, err := agg.Aggregate(context.Background(), arena, root, tenBins)
	require.NoError(t, err)
	require.Len(t, res.Labels, 1)
	assert.Equal(t, 2, res.Labels[0].StartBin)
	assert.Equal(t, 5, res.Labels[0].EndBin)

	agg.SetLabelMinBins(4)

	res, err = agg.Aggregate(context.Background(), arena, root, tenBins)
	require.NoError(t, err)
	assert.Empty(t, res.Labels)
}

func TestAggregate_ChildUtilOnlyForMatchingLayout(t *testing.T) {
	t.Parallel()

	half := []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	arena, root := newNode(t, trace.Node{
		Name: "work", Location: locA, Enter: 0, Leave: 15,
		Util: trace.Series{Begin: 0, End: 100, Values: half},
	})

	agg := aggregate.New(nil, nil)

	res, err := agg.Aggregate(context.Background(), arena, root, tenBins)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5, 0, 0, 0, 0, 0, 0, 0, 0}, res.PerLocation[locA])

	// Same bin count, shifted domain: the cached series no longer applies.
	shifted := aggregate.Bins{DomainBegin: -50, DomainEnd: 50, Count: 10}

	res, err = agg.Aggregate(context.Background(), arena, root, shifted)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 1, 1, 0, 0, 0}, res.PerLocation[locA])
}

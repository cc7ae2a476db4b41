package trace_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/traveler/internal/trace"
)

const (
	testLoc0 = "0-0"
	testLoc1 = "0-1"
)

func TestInterval_KeyIgnoresPrimitive(t *testing.T) {
	t.Parallel()

	a := trace.Interval{Enter: 10, Leave: 20, Location: testLoc0, Primitive: "foo"}
	b := trace.Interval{Enter: 10, Leave: 20, Location: testLoc0, Primitive: "bar"}

	assert.Equal(t, a.Key(), b.Key())
}

func TestInterval_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, trace.Interval{Enter: 1, Leave: 1}.Validate())
	require.ErrorIs(t, trace.Interval{Enter: 2, Leave: 1}.Validate(), trace.ErrInvertedInterval)
	require.ErrorIs(t, trace.Interval{Enter: math.NaN(), Leave: 1}.Validate(), trace.ErrNonFiniteTime)
}

func TestInterval_Overlaps(t *testing.T) {
	t.Parallel()

	iv := trace.Interval{Enter: 10, Leave: 20}

	assert.True(t, iv.Overlaps(0, 10))
	assert.True(t, iv.Overlaps(20, 30))
	assert.True(t, iv.Overlaps(12, 15))
	assert.False(t, iv.Overlaps(21, 30))
	assert.False(t, iv.Overlaps(0, 9))
}

func TestSplitLocation(t *testing.T) {
	t.Parallel()

	node, thread := trace.SplitLocation(trace.Location("3", "7"))
	assert.Equal(t, "3", node)
	assert.Equal(t, "7", thread)

	node, thread = trace.SplitLocation("cpu")
	assert.Equal(t, "cpu", node)
	assert.Empty(t, thread)
}

func TestArena_Children(t *testing.T) {
	t.Parallel()

	arena := trace.NewArena()
	root := arena.AddRoot("main", "n0")

	_, err := arena.AddChild(root, "work", testLoc0, 0, 10, trace.Series{})
	require.NoError(t, err)

	_, err = arena.AddChild(root, "work", testLoc1, 5, 15, trace.Series{})
	require.NoError(t, err)

	_, err = arena.AddChild(root, "io", testLoc0, 20, 30, trace.Series{})
	require.NoError(t, err)

	kids := arena.Children(root)
	require.Len(t, kids, 3)
	assert.Equal(t, "io", kids[2].Name)
	assert.Equal(t, root, kids[0].Parent)
	assert.Equal(t, []string{testLoc0, testLoc1}, arena.Locations(root))
	assert.Equal(t, 4, arena.Len())
}

func TestArena_UnknownNode(t *testing.T) {
	t.Parallel()

	arena := trace.NewArena()

	_, err := arena.AddChild(7, "x", testLoc0, 0, 1, trace.Series{})
	require.ErrorIs(t, err, trace.ErrUnknownNode)
	require.ErrorIs(t, arena.SetUtil(3, trace.Series{}), trace.ErrUnknownNode)

	_, ok := arena.Node(0)
	assert.False(t, ok)
	assert.Nil(t, arena.Children(0))
}

func TestSeries_Fits(t *testing.T) {
	t.Parallel()

	s := trace.Series{Begin: 0, End: 100, Values: []float64{1, 0, 1, 1}}

	assert.True(t, s.Fits(0, 100, 4))
	assert.False(t, s.Fits(50, 150, 4))
	assert.False(t, s.Fits(0, 100, 5))
	assert.False(t, trace.Series{}.Fits(0, 100, 0))
}

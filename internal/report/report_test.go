package report_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/traveler/internal/aggregate"
	"github.com/Sumatoshi-tech/traveler/internal/intervalcache"
	"github.com/Sumatoshi-tech/traveler/internal/report"
	"github.com/Sumatoshi-tech/traveler/internal/snapshot"
	"github.com/Sumatoshi-tech/traveler/internal/trace"
)

const (
	locA = "0-0"
	locB = "0-1"
)

func demoSnapshot() *snapshot.Snapshot {
	return snapshot.FromIntervals([]trace.Interval{
		{Enter: 0, Leave: 10, Location: locA, Primitive: "init"},
		{Enter: 20, Leave: 25, Location: locA, Primitive: "solve"},
		{Enter: 5, Leave: 1500, Location: locB, Primitive: "solve"},
	})
}

func demoResult() *aggregate.Result {
	return &aggregate.Result{
		Bins:      aggregate.Bins{DomainBegin: 0, DomainEnd: 40, Count: 4},
		Locations: []string{locA, locB},
		PerLocation: map[string][]float64{
			locA: {1, 1, 0, 0},
			locB: {0, 1, 1, 0},
		},
		Merged: []float64{1, 2, 1, 0},
		Labels: []aggregate.Label{{Name: "solve", Location: locB, StartBin: 1, EndBin: 2}},
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	rows := report.Summarize(demoSnapshot())
	require.Len(t, rows, 2)

	assert.Equal(t, locA, rows[0].Location)
	assert.Equal(t, 2, rows[0].Intervals)
	assert.Equal(t, 2, rows[0].Primitives)
	assert.InDelta(t, 15.0, rows[0].Busy, 1e-9)
	assert.InDelta(t, 0.0, rows[0].First, 1e-9)
	assert.InDelta(t, 25.0, rows[0].Last, 1e-9)

	assert.Equal(t, 1, rows[1].Intervals)
	assert.InDelta(t, 1495.0, rows[1].Busy, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, report.Summarize(snapshot.Empty()))
}

func TestWriteWindow(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.WriteWindow(&buf, demoSnapshot(), report.TableOptions{}))

	out := strings.ToLower(buf.String())
	assert.Contains(t, out, locA)
	assert.Contains(t, out, locB)
	assert.Contains(t, out, "1495")
	assert.Contains(t, out, "total: 3 intervals on 2 locations")
}

func TestWriteWindow_Truncates(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.WriteWindow(&buf, demoSnapshot(), report.TableOptions{MaxRows: 1}))

	out := strings.ToLower(buf.String())
	assert.Contains(t, out, locA)
	assert.NotContains(t, out, locB)
	assert.Contains(t, out, "(1 shown)")
}

func TestWriteWindow_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.WriteWindow(&buf, snapshot.Empty(), report.TableOptions{}))
	assert.Equal(t, "No intervals in view\n", buf.String())
}

func TestFormatStatus(t *testing.T) {
	t.Parallel()

	plain := report.FormatStatus(intervalcache.Status{Phase: intervalcache.PhaseError, Message: "boom"}, false)
	assert.Equal(t, "ERROR: boom", plain)

	assert.Equal(t, "READY", report.FormatStatus(intervalcache.Status{Phase: intervalcache.PhaseReady}, false))

	colored := report.FormatStatus(intervalcache.Status{Phase: intervalcache.PhaseLoading}, true)
	assert.Contains(t, colored, "\x1b[")
	assert.Contains(t, colored, "LOADING")
}

func TestWriteUtilization(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.WriteUtilization(&buf, demoResult(), report.TableOptions{}))

	out := strings.ToLower(buf.String())
	assert.Contains(t, out, "4 bins over 2 locations, 1 labels")
	assert.Contains(t, out, strings.Repeat("█", 20))
	assert.Contains(t, out, strings.Repeat("█", 10)+strings.Repeat("░", 10))
}

func TestWriteUtilizationHTML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.WriteUtilizationHTML(&buf, "solver utilization", demoResult()))

	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "solver utilization")
	assert.Contains(t, out, "merged")
	assert.Contains(t, out, locB)
	assert.Contains(t, out, "solve@"+locB)
}

func TestWriteSeries(t *testing.T) {
	t.Parallel()

	bins := aggregate.Bins{DomainBegin: 0, DomainEnd: 100, Count: 4}

	var buf bytes.Buffer
	require.NoError(t, report.WriteSeries(&buf, bins, []float64{10, 50, 25, 0}, "Busy", report.TableOptions{MaxRows: 3}))

	out := strings.ToLower(buf.String())
	assert.Contains(t, out, "busy")
	assert.Contains(t, out, "4 bins of 25, peak 50")
	assert.Contains(t, out, strings.Repeat("█", 20))
	assert.Contains(t, out, strings.Repeat("█", 4)+strings.Repeat("░", 16))
	assert.NotContains(t, out, strings.Repeat("░", 20))
}

package traceapi_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/traveler/internal/trace"
	"github.com/Sumatoshi-tech/traveler/internal/traceapi"
)

const (
	testDataset   = "run 1"
	testPrimitive = "solve/step"
	testLoc       = "0-0"
)

type fakeService struct {
	intervals []trace.Interval
	err       error
	gotQuery  traceapi.IntervalQuery
	gotNode   string
	gotLocs   []string
	gotMode   traceapi.UtilMode
}

func (f *fakeService) Histogram(_ context.Context, _ string, bins int, begin, end float64) ([]traceapi.Bin, error) {
	if f.err != nil {
		return nil, f.err
	}

	out := make([]traceapi.Bin, bins)
	width := (end - begin) / float64(bins)

	for i := range out {
		out[i] = traceapi.Bin{Begin: begin + float64(i)*width, End: begin + float64(i+1)*width, Count: int64(i + 1)}
	}

	return out, nil
}

func (f *fakeService) Intervals(_ context.Context, q traceapi.IntervalQuery, fn traceapi.ChunkFunc) error {
	f.gotQuery = q

	if f.err != nil {
		return f.err
	}

	return fn(f.intervals)
}

func (f *fakeService) PrimitiveTraceForward(
	_ context.Context, _, nodeID string, _ int, _, _ float64,
) (traceapi.Forward, error) {
	f.gotNode = nodeID

	if f.err != nil {
		return nil, f.err
	}

	return traceapi.Forward{
		testLoc: {{Name: "child", StartTime: 1, EndTime: 4, Util: []float64{0.5, 1}}},
		"0-1":   {},
	}, nil
}

func (f *fakeService) UtilizationHistogram(
	_ context.Context, _, _ string, locations []string, bins int, _, _ float64,
) (map[string][]float64, error) {
	f.gotLocs = locations

	if f.err != nil {
		return nil, f.err
	}

	out := make(map[string][]float64, len(locations))
	for _, loc := range locations {
		out[loc] = make([]float64, bins)
		out[loc][0] = 0.25
	}

	return out, nil
}

func (f *fakeService) MergedUtilization(
	_ context.Context, _, _ string, mode traceapi.UtilMode, bins int, _, _ float64,
) ([]float64, error) {
	f.gotMode = mode

	if f.err != nil {
		return nil, f.err
	}

	out := make([]float64, bins)
	out[bins-1] = 1.5

	return out, nil
}

func newPair(t *testing.T, svc traceapi.Client, opts ...traceapi.ClientOption) *traceapi.HTTPClient {
	t.Helper()

	srv := httptest.NewServer(traceapi.NewServer(svc, nil).Handler())
	t.Cleanup(srv.Close)

	client, err := traceapi.NewHTTPClient(srv.URL, opts...)
	require.NoError(t, err)

	return client
}

func rawServer(t *testing.T, handler http.HandlerFunc) *traceapi.HTTPClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := traceapi.NewHTTPClient(srv.URL)
	require.NoError(t, err)

	return client
}

func TestHistogram_RoundTrip(t *testing.T) {
	t.Parallel()

	client := newPair(t, &fakeService{})

	bins, err := client.Histogram(context.Background(), testDataset, 4, 0, 100)
	require.NoError(t, err)
	require.Len(t, bins, 4)

	assert.Equal(t, traceapi.Bin{Begin: 25, End: 50, Count: 2}, bins[1])
	assert.Equal(t, int64(10), traceapi.TotalCount(bins))
}

func TestIntervals_ChunksAndCompletion(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	for i := range 5 {
		svc.intervals = append(svc.intervals, trace.Interval{
			Enter: float64(i), Leave: float64(i + 1), Location: testLoc, Primitive: "p",
		})
	}

	client := newPair(t, svc, traceapi.WithChunkSize(2))

	var sizes []int

	var got []trace.Interval

	err := client.Intervals(context.Background(), traceapi.IntervalQuery{
		Dataset: testDataset, Begin: 0, End: 10, Locations: []string{testLoc, "0-1"},
	}, func(chunk []trace.Interval) error {
		sizes = append(sizes, len(chunk))
		got = append(got, chunk...)

		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, svc.intervals, got)
	assert.Equal(t, testDataset, svc.gotQuery.Dataset)
	assert.Equal(t, []string{testLoc, "0-1"}, svc.gotQuery.Locations)
}

func TestIntervals_EmptyStream(t *testing.T) {
	t.Parallel()

	client := newPair(t, &fakeService{})

	calls := 0
	err := client.Intervals(context.Background(), traceapi.IntervalQuery{Dataset: testDataset, End: 1},
		func([]trace.Interval) error {
			calls++

			return nil
		})

	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestIntervals_MissingDoneLineFails(t *testing.T) {
	t.Parallel()

	client := rawServer(t, func(rw http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(rw, `{"enter":1,"leave":2,"location":"0-0"}`)
	})

	received := 0
	err := client.Intervals(context.Background(), traceapi.IntervalQuery{Dataset: testDataset, End: 1},
		func(chunk []trace.Interval) error {
			received += len(chunk)

			return nil
		})

	require.ErrorIs(t, err, traceapi.ErrIncompleteStream)
	require.ErrorIs(t, err, traceapi.ErrQueryFailed)
	assert.Zero(t, received)
}

func TestIntervals_CallbackErrorAborts(t *testing.T) {
	t.Parallel()

	svc := &fakeService{intervals: []trace.Interval{{Enter: 0, Leave: 1, Location: testLoc}}}
	client := newPair(t, svc)
	stop := errors.New("stop")

	err := client.Intervals(context.Background(), traceapi.IntervalQuery{Dataset: testDataset, End: 1},
		func([]trace.Interval) error { return stop })

	require.ErrorIs(t, err, stop)
}

func TestIntervals_Cancelled(t *testing.T) {
	t.Parallel()

	client := newPair(t, &fakeService{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Intervals(ctx, traceapi.IntervalQuery{Dataset: testDataset, End: 1},
		func([]trace.Interval) error { return nil })

	require.ErrorIs(t, err, context.Canceled)
}

func TestStillLoadingMapsTo503(t *testing.T) {
	t.Parallel()

	client := newPair(t, &fakeService{err: traceapi.ErrStillLoading})

	_, err := client.Histogram(context.Background(), testDataset, 1, 0, 1)
	require.ErrorIs(t, err, traceapi.ErrStillLoading)
	assert.True(t, traceapi.IsStillLoading(err))

	err = client.Intervals(context.Background(), traceapi.IntervalQuery{Dataset: testDataset, End: 1},
		func([]trace.Interval) error { return nil })
	require.ErrorIs(t, err, traceapi.ErrStillLoading)
}

func TestUnknownDatasetIsQueryFailure(t *testing.T) {
	t.Parallel()

	client := newPair(t, &fakeService{err: traceapi.ErrUnknownDataset})

	_, err := client.UtilizationHistogram(context.Background(), testDataset, testPrimitive, nil, 2, 0, 1)
	require.ErrorIs(t, err, traceapi.ErrQueryFailed)
	assert.Contains(t, err.Error(), "404")
}

func TestInvalidBinsRejected(t *testing.T) {
	t.Parallel()

	client := newPair(t, &fakeService{})

	_, err := client.Histogram(context.Background(), testDataset, 0, 0, 1)
	require.ErrorIs(t, err, traceapi.ErrQueryFailed)
	assert.Contains(t, err.Error(), "400")
}

func TestPrimitiveTraceForward_EscapesNode(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	client := newPair(t, svc)

	fwd, err := client.PrimitiveTraceForward(context.Background(), testDataset, testPrimitive, 8, 0, 10)
	require.NoError(t, err)

	assert.Equal(t, testPrimitive, svc.gotNode)
	require.Len(t, fwd[testLoc], 1)
	assert.Equal(t, traceapi.ForwardRecord{Name: "child", StartTime: 1, EndTime: 4, Util: []float64{0.5, 1}}, fwd[testLoc][0])
	assert.Empty(t, fwd["0-1"])
}

func TestPrimitiveTraceForward_NonArrayFails(t *testing.T) {
	t.Parallel()

	client := rawServer(t, func(rw http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(rw, `{"0-0": {"name": "child", "startTime": 1, "endTime": 2}}`)
	})

	_, err := client.PrimitiveTraceForward(context.Background(), testDataset, testPrimitive, 8, 0, 10)
	require.ErrorIs(t, err, traceapi.ErrQueryFailed)
}

func TestUtilizationHistogram_Locations(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	client := newPair(t, svc)

	util, err := client.UtilizationHistogram(context.Background(), testDataset, testPrimitive,
		[]string{testLoc, "1-0"}, 3, 0, 30)
	require.NoError(t, err)

	assert.Equal(t, []string{testLoc, "1-0"}, svc.gotLocs)
	assert.Equal(t, []float64{0.25, 0, 0}, util["1-0"])
}

func TestMergedUtilization_Mode(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	client := newPair(t, svc)

	series, err := client.MergedUtilization(context.Background(), testDataset, testPrimitive, traceapi.ModeMetric, 3, 0, 30)
	require.NoError(t, err)

	assert.Equal(t, traceapi.ModeMetric, svc.gotMode)
	assert.Equal(t, []float64{0, 0, 1.5}, series)

	_, err = client.MergedUtilization(context.Background(), testDataset, testPrimitive, traceapi.UtilMode("peak"), 3, 0, 30)
	require.ErrorIs(t, err, traceapi.ErrQueryFailed)
	assert.Contains(t, err.Error(), "400")
}

func TestParseUtilMode(t *testing.T) {
	t.Parallel()

	mode, err := traceapi.ParseUtilMode("")
	require.NoError(t, err)
	assert.Equal(t, traceapi.ModeInterval, mode)

	mode, err = traceapi.ParseUtilMode("metric")
	require.NoError(t, err)
	assert.Equal(t, traceapi.ModeMetric, mode)

	_, err = traceapi.ParseUtilMode("peak")
	require.ErrorIs(t, err, traceapi.ErrInvalidQuery)
}

func TestNewHTTPClient_RejectsRelativeURL(t *testing.T) {
	t.Parallel()

	_, err := traceapi.NewHTTPClient("localhost")
	require.ErrorIs(t, err, traceapi.ErrInvalidQuery)
}

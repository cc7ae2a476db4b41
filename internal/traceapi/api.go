// Package traceapi defines the contract of the remote trace query service,
// its wire format, and an HTTP client and server for it.
package traceapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/traveler/internal/trace"
)

var (
	// ErrStillLoading is returned while the service is still building its
	// index for a dataset. Callers retry later.
	ErrStillLoading = errors.New("dataset index is still building")
	// ErrQueryFailed wraps every other query failure: transport errors,
	// unexpected status codes and malformed payloads.
	ErrQueryFailed = errors.New("query failed")
	// ErrUnknownDataset is returned by services for an unknown dataset id.
	ErrUnknownDataset = errors.New("unknown dataset")
	// ErrUnknownPrimitive is returned by services for an unknown primitive.
	ErrUnknownPrimitive = errors.New("unknown primitive")
	// ErrInvalidQuery is returned for out-of-range query parameters.
	ErrInvalidQuery = errors.New("invalid query parameters")
)

// Bin is one histogram bucket: the number of intervals overlapping
// [Begin, End].
type Bin struct {
	Begin float64
	End   float64
	Count int64
}

// TotalCount sums the counts of all bins.
func TotalCount(bins []Bin) int64 {
	var total int64
	for _, b := range bins {
		total += b.Count
	}

	return total
}

// IntervalQuery scopes an interval stream to a time window and, optionally,
// a subset of locations.
type IntervalQuery struct {
	Dataset   string
	Begin     float64
	End       float64
	Locations []string
}

// ForwardRecord is one child occurrence in a primitive trace-forward payload.
type ForwardRecord struct {
	Name      string
	StartTime float64
	EndTime   float64
	Util      []float64
}

// Forward maps each location to the child occurrences placed there.
type Forward map[string][]ForwardRecord

// UtilMode selects how a merged utilization histogram scales each bin.
type UtilMode string

const (
	// ModeInterval reports the mean number of active intervals per bin.
	ModeInterval UtilMode = "interval"
	// ModeMetric reports the accumulated active time per bin.
	ModeMetric UtilMode = "metric"
)

// ParseUtilMode accepts a mode name. An empty name selects ModeInterval.
func ParseUtilMode(name string) (UtilMode, error) {
	switch UtilMode(name) {
	case "", ModeInterval:
		return ModeInterval, nil
	case ModeMetric:
		return ModeMetric, nil
	default:
		return "", fmt.Errorf("%w: mode=%q", ErrInvalidQuery, name)
	}
}

// ChunkFunc receives one chunk of streamed intervals, in arrival order.
// Returning an error aborts the stream.
type ChunkFunc func([]trace.Interval) error

// Client is the query service contract.
type Client interface {
	// Histogram returns bins interval counts over [begin, end].
	Histogram(ctx context.Context, dataset string, bins int, begin, end float64) ([]Bin, error)
	// Intervals streams every interval overlapping the query window. It
	// returns nil only after the stream completed.
	Intervals(ctx context.Context, q IntervalQuery, fn ChunkFunc) error
	// PrimitiveTraceForward returns the child occurrences of a primitive.
	PrimitiveTraceForward(ctx context.Context, dataset, nodeID string, bins int, begin, end float64) (Forward, error)
	// UtilizationHistogram returns per-location utilization of a primitive.
	UtilizationHistogram(
		ctx context.Context, dataset, primitive string, locations []string, bins int, begin, end float64,
	) (map[string][]float64, error)
	// MergedUtilization returns the utilization of a primitive summed over
	// every location it runs on.
	MergedUtilization(
		ctx context.Context, dataset, primitive string, mode UtilMode, bins int, begin, end float64,
	) ([]float64, error)
}

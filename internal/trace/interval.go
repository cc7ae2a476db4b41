// Package trace defines the execution-trace data model shared by the query
// client, the streaming cache and the utilization aggregator.
package trace

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvertedInterval is returned when an interval leaves before it enters.
var ErrInvertedInterval = errors.New("interval leave time precedes enter time")

// ErrNonFiniteTime is returned when an interval carries a NaN or infinite timestamp.
var ErrNonFiniteTime = errors.New("interval timestamp is not finite")

// locationSeparator joins the node and thread parts of a composite location.
const locationSeparator = "-"

// Interval is one execution span of a primitive on a single location.
// Values are immutable once received; callers must not modify Util in place.
type Interval struct {
	Enter     float64   `json:"enter"`
	Leave     float64   `json:"leave"`
	Location  string    `json:"location"`
	Primitive string    `json:"primitive"`
	Parent    string    `json:"parent,omitempty"`
	Util      []float64 `json:"util,omitempty"`
}

// Key identifies an interval across possibly overlapping streamed responses.
type Key struct {
	Enter    float64
	Leave    float64
	Location string
}

// Key returns the deduplication key of the interval.
func (iv Interval) Key() Key {
	return Key{Enter: iv.Enter, Leave: iv.Leave, Location: iv.Location}
}

// Duration returns Leave - Enter.
func (iv Interval) Duration() float64 {
	return iv.Leave - iv.Enter
}

// Overlaps reports whether the interval intersects the closed range [begin, end].
func (iv Interval) Overlaps(begin, end float64) bool {
	return iv.Enter <= end && iv.Leave >= begin
}

// Validate checks the interval invariants.
func (iv Interval) Validate() error {
	if !isFinite(iv.Enter) || !isFinite(iv.Leave) {
		return fmt.Errorf("%w: [%v, %v]", ErrNonFiniteTime, iv.Enter, iv.Leave)
	}

	if iv.Leave < iv.Enter {
		return fmt.Errorf("%w: [%v, %v] at %s", ErrInvertedInterval, iv.Enter, iv.Leave, iv.Location)
	}

	return nil
}

// Location builds a composite location identifier from a node and a thread.
func Location(node, thread string) string {
	return node + locationSeparator + thread
}

// SplitLocation splits a composite location into node and thread parts.
// Locations without a separator are returned whole as the node.
func SplitLocation(loc string) (node, thread string) {
	node, thread, found := strings.Cut(loc, locationSeparator)
	if !found {
		return loc, ""
	}

	return node, thread
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

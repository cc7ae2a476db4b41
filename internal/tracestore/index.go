// Package tracestore is an in-memory implementation of the trace query
// service, used by the serve command and by tests.
package tracestore

import (
	"sort"

	"github.com/Sumatoshi-tech/traveler/internal/trace"
)

// Index answers overlap queries over a static set of intervals. Intervals
// are sorted by enter time and paired with a running maximum of leave
// times, so the candidates for a window form one contiguous run.
type Index struct {
	items    []trace.Interval
	maxLeave []float64
}

// NewIndex builds an index. The input slice is copied.
func NewIndex(ivs []trace.Interval) *Index {
	items := append([]trace.Interval(nil), ivs...)

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Enter != items[j].Enter {
			return items[i].Enter < items[j].Enter
		}

		return items[i].Leave < items[j].Leave
	})

	maxLeave := make([]float64, len(items))
	for i, iv := range items {
		maxLeave[i] = iv.Leave
		if i > 0 {
			maxLeave[i] = max(maxLeave[i], maxLeave[i-1])
		}
	}

	return &Index{items: items, maxLeave: maxLeave}
}

// Len returns the number of indexed intervals.
func (x *Index) Len() int {
	return len(x.items)
}

// Bounds returns the earliest enter and the latest leave.
func (x *Index) Bounds() (begin, end float64, ok bool) {
	if len(x.items) == 0 {
		return 0, 0, false
	}

	return x.items[0].Enter, x.maxLeave[len(x.maxLeave)-1], true
}

// Overlapping calls fn, in enter order, for every interval intersecting the
// closed window [begin, end] until fn returns false.
func (x *Index) Overlapping(begin, end float64, fn func(trace.Interval) bool) {
	hi := sort.Search(len(x.items), func(i int) bool { return x.items[i].Enter > end })
	lo := sort.Search(hi, func(i int) bool { return x.maxLeave[i] >= begin })

	for i := lo; i < hi; i++ {
		if x.items[i].Leave < begin {
			continue
		}

		if !fn(x.items[i]) {
			return
		}
	}
}

// Count returns the number of intervals intersecting [begin, end].
func (x *Index) Count(begin, end float64) int64 {
	var n int64

	x.Overlapping(begin, end, func(trace.Interval) bool {
		n++

		return true
	})

	return n
}

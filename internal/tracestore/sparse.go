package tracestore

import "sort"

// UtilMode selects how a sparse list turns integrals into bin values.
type UtilMode int

const (
	// IntervalMode divides the integral over a bin by the bin width, giving
	// the mean number of active intervals.
	IntervalMode UtilMode = iota
	// MetricMode reports the raw integral delta per bin.
	MetricMode
)

// criticalPoint is one change in the number of active intervals. counter is
// the number active after Index; util is the integral of the counter from
// the first point up to Index.
type criticalPoint struct {
	index   float64
	counter int64
	util    float64
}

// SparseList is the utilization integral of one primitive on one location,
// stored only at the times where the active count changes.
type SparseList struct {
	points []criticalPoint
}

type edge struct {
	at    float64
	delta int64
}

// NewSparseList builds the list from [enter, leave] spans. Overlapping
// spans stack.
func NewSparseList(spans [][2]float64) *SparseList {
	edges := make([]edge, 0, 2*len(spans))
	for _, s := range spans {
		edges = append(edges, edge{at: s[0], delta: 1}, edge{at: s[1], delta: -1})
	}

	sort.SliceStable(edges, func(i, j int) bool { return edges[i].at < edges[j].at })

	points := make([]criticalPoint, 0, len(edges))

	var counter int64

	for _, e := range edges {
		util := 0.0
		if n := len(points); n > 0 {
			prev := points[n-1]
			util = prev.util + (e.at-prev.index)*float64(prev.counter)
		}

		counter += e.delta

		if n := len(points); n > 0 && points[n-1].index == e.at {
			points[n-1].counter = counter

			continue
		}

		points = append(points, criticalPoint{index: e.at, counter: counter, util: util})
	}

	return &SparseList{points: points}
}

// Len returns the number of critical points.
func (l *SparseList) Len() int {
	return len(l.points)
}

// Integral returns the integral of the active count from the first critical
// point up to t.
func (l *SparseList) Integral(t float64) float64 {
	i := sort.Search(len(l.points), func(i int) bool { return l.points[i].index > t })
	if i == 0 {
		return 0
	}

	p := l.points[i-1]

	return p.util + (t-p.index)*float64(p.counter)
}

// Bins evaluates the list over bins equal-width bins spanning [begin, end].
func (l *SparseList) Bins(bins int, begin, end float64, mode UtilMode) []float64 {
	if bins <= 0 {
		return nil
	}

	out := make([]float64, bins)
	width := (end - begin) / float64(bins)

	prev := l.Integral(begin)

	for i := range bins {
		edgeAt := begin + float64(i+1)*width
		if i == bins-1 {
			edgeAt = end
		}

		cur := l.Integral(edgeAt)
		delta := cur - prev
		prev = cur

		switch {
		case mode == MetricMode:
			out[i] = delta
		case width > 0:
			out[i] = delta / width
		}
	}

	return out
}

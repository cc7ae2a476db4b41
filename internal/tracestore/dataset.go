package tracestore

import (
	"sort"

	"github.com/Sumatoshi-tech/traveler/internal/trace"
)

// Dataset is one immutable, fully indexed trace.
type Dataset struct {
	ID        string
	index     *Index
	locations []string
	// util holds one sparse list per primitive and location.
	util map[string]map[string]*SparseList
	// children maps a parent primitive to its child occurrences.
	children map[string]*Index
}

// NewDataset indexes intervals.
func NewDataset(id string, ivs []trace.Interval) *Dataset {
	spans := make(map[string]map[string][][2]float64)
	kids := make(map[string][]trace.Interval)
	locSet := make(map[string]struct{})

	for _, iv := range ivs {
		locSet[iv.Location] = struct{}{}

		perLoc, ok := spans[iv.Primitive]
		if !ok {
			perLoc = make(map[string][][2]float64)
			spans[iv.Primitive] = perLoc
		}

		perLoc[iv.Location] = append(perLoc[iv.Location], [2]float64{iv.Enter, iv.Leave})

		if iv.Parent != "" {
			kids[iv.Parent] = append(kids[iv.Parent], iv)
		}
	}

	ds := &Dataset{
		ID:       id,
		index:    NewIndex(ivs),
		util:     make(map[string]map[string]*SparseList, len(spans)),
		children: make(map[string]*Index, len(kids)),
	}

	for prim, perLoc := range spans {
		lists := make(map[string]*SparseList, len(perLoc))
		for loc, s := range perLoc {
			lists[loc] = NewSparseList(s)
		}

		ds.util[prim] = lists
	}

	for parent, list := range kids {
		ds.children[parent] = NewIndex(list)
	}

	for loc := range locSet {
		ds.locations = append(ds.locations, loc)
	}

	sort.Strings(ds.locations)

	return ds
}

// Len returns the number of intervals.
func (d *Dataset) Len() int {
	return d.index.Len()
}

// Locations returns the sorted distinct locations.
func (d *Dataset) Locations() []string {
	return d.locations
}

// Primitives returns the sorted distinct primitive names.
func (d *Dataset) Primitives() []string {
	out := make([]string, 0, len(d.util))
	for p := range d.util {
		out = append(out, p)
	}

	sort.Strings(out)

	return out
}

// Bounds returns the time domain covered by the dataset.
func (d *Dataset) Bounds() (begin, end float64, ok bool) {
	return d.index.Bounds()
}

// hasPrimitive reports whether name occurs as a primitive or as a parent.
func (d *Dataset) hasPrimitive(name string) bool {
	_, isPrim := d.util[name]
	_, isParent := d.children[name]

	return isPrim || isParent
}

// utilization evaluates the sparse list of primitive at loc. ok is false
// when the primitive never runs there.
func (d *Dataset) utilization(primitive, loc string, bins int, begin, end float64, mode UtilMode) ([]float64, bool) {
	list, ok := d.util[primitive][loc]
	if !ok {
		return nil, false
	}

	return list.Bins(bins, begin, end, mode), true
}

// ganttHistogram returns the per-location utilization of primitive.
func (d *Dataset) ganttHistogram(
	primitive string, locations []string, bins int, begin, end float64, mode UtilMode,
) map[string][]float64 {
	if len(locations) == 0 {
		for loc := range d.util[primitive] {
			locations = append(locations, loc)
		}
	}

	out := make(map[string][]float64, len(locations))

	for _, loc := range locations {
		if series, ok := d.utilization(primitive, loc, bins, begin, end, mode); ok {
			out[loc] = series
		}
	}

	return out
}

// MergedUtilization sums the per-location utilization of primitive over
// every location it runs on. In MetricMode each bin holds the total active
// time instead of the mean number of active intervals.
func (d *Dataset) MergedUtilization(primitive string, mode UtilMode, bins int, begin, end float64) []float64 {
	out := make([]float64, bins)

	for _, series := range d.ganttHistogram(primitive, nil, bins, begin, end, mode) {
		for i, v := range series {
			out[i] += v
		}
	}

	return out
}

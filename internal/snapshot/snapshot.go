// Package snapshot provides immutable interval datasets keyed by trace.Key,
// the builder used to accumulate streamed records, and their persisted form.
package snapshot

import (
	"sort"

	"github.com/Sumatoshi-tech/traveler/internal/trace"
)

// Snapshot is an immutable mapping from interval identity to interval data.
// A Snapshot is safe for concurrent reads; it is never mutated after Build.
type Snapshot struct {
	items map[trace.Key]trace.Interval
}

var empty = &Snapshot{items: map[trace.Key]trace.Interval{}}

// Empty returns the shared empty snapshot.
func Empty() *Snapshot {
	return empty
}

// Len returns the number of intervals.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}

	return len(s.items)
}

// Get looks up an interval by key.
func (s *Snapshot) Get(k trace.Key) (trace.Interval, bool) {
	if s == nil {
		return trace.Interval{}, false
	}

	iv, ok := s.items[k]

	return iv, ok
}

// Range calls fn for every interval in unspecified order until fn returns false.
func (s *Snapshot) Range(fn func(trace.Interval) bool) {
	if s == nil {
		return
	}

	for _, iv := range s.items {
		if !fn(iv) {
			return
		}
	}
}

// Intervals returns all intervals sorted by location, then enter, then leave.
func (s *Snapshot) Intervals() []trace.Interval {
	out := make([]trace.Interval, 0, s.Len())

	s.Range(func(iv trace.Interval) bool {
		out = append(out, iv)

		return true
	})

	sortIntervals(out)

	return out
}

// ByLocation groups intervals per location, each group sorted by enter time.
func (s *Snapshot) ByLocation() map[string][]trace.Interval {
	out := make(map[string][]trace.Interval)

	for _, iv := range s.Intervals() {
		out[iv.Location] = append(out[iv.Location], iv)
	}

	return out
}

// Locations returns the sorted distinct locations present in the snapshot.
func (s *Snapshot) Locations() []string {
	seen := make(map[string]struct{})

	s.Range(func(iv trace.Interval) bool {
		seen[iv.Location] = struct{}{}

		return true
	})

	locs := make([]string, 0, len(seen))
	for loc := range seen {
		locs = append(locs, loc)
	}

	sort.Strings(locs)

	return locs
}

// Bounds returns the earliest enter and latest leave. ok is false for an
// empty snapshot.
func (s *Snapshot) Bounds() (begin, end float64, ok bool) {
	s.Range(func(iv trace.Interval) bool {
		if !ok {
			begin, end, ok = iv.Enter, iv.Leave, true

			return true
		}

		begin = min(begin, iv.Enter)
		end = max(end, iv.Leave)

		return true
	})

	return begin, end, ok
}

// Union returns a snapshot holding every interval of base and overlay.
// Entries of overlay win on key collisions. Neither input is modified.
func Union(base, overlay *Snapshot) *Snapshot {
	switch {
	case overlay.Len() == 0 && base != nil:
		return base
	case base.Len() == 0 && overlay != nil:
		return overlay
	}

	items := make(map[trace.Key]trace.Interval, base.Len()+overlay.Len())

	base.Range(func(iv trace.Interval) bool {
		items[iv.Key()] = iv

		return true
	})
	overlay.Range(func(iv trace.Interval) bool {
		items[iv.Key()] = iv

		return true
	})

	return &Snapshot{items: items}
}

func sortIntervals(ivs []trace.Interval) {
	sort.Slice(ivs, func(i, j int) bool {
		a, b := ivs[i], ivs[j]
		if a.Location != b.Location {
			return a.Location < b.Location
		}

		if a.Enter != b.Enter {
			return a.Enter < b.Enter
		}

		return a.Leave < b.Leave
	})
}

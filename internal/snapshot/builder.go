package snapshot

import "github.com/Sumatoshi-tech/traveler/internal/trace"

// Builder accumulates intervals for one in-flight query. Later records with
// the same key replace earlier ones. A Builder is not safe for concurrent use.
type Builder struct {
	items map[trace.Key]trace.Interval
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{items: make(map[trace.Key]trace.Interval)}
}

// Put merges one interval, replacing any previous record with the same key.
func (b *Builder) Put(iv trace.Interval) {
	b.items[iv.Key()] = iv
}

// PutAll merges a chunk of intervals in order.
func (b *Builder) PutAll(ivs []trace.Interval) {
	for _, iv := range ivs {
		b.Put(iv)
	}
}

// Len returns the number of distinct keys merged so far.
func (b *Builder) Len() int {
	return len(b.items)
}

// Snapshot returns an immutable copy of the current contents. The builder
// remains usable.
func (b *Builder) Snapshot() *Snapshot {
	items := make(map[trace.Key]trace.Interval, len(b.items))
	for k, v := range b.items {
		items[k] = v
	}

	return &Snapshot{items: items}
}

// Build hands the accumulated contents over to a snapshot without copying
// and resets the builder.
func (b *Builder) Build() *Snapshot {
	s := &Snapshot{items: b.items}
	b.items = make(map[trace.Key]trace.Interval)

	return s
}

// FromIntervals builds a snapshot from a slice.
func FromIntervals(ivs []trace.Interval) *Snapshot {
	b := NewBuilder()
	b.PutAll(ivs)

	return b.Build()
}

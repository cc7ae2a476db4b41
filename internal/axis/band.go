package axis

import "math"

// Band places an ordered, de-duplicated list of locations in equal-height
// bands over the pixel range [R0, R1].
type Band struct {
	domain []string
	index  map[string]int
	r0, r1 float64
}

// NewBand creates a band scale. Duplicate locations keep their first position.
func NewBand(locations []string, r0, r1 float64) *Band {
	b := &Band{index: make(map[string]int, len(locations)), r0: r0, r1: r1}

	for _, loc := range locations {
		if _, dup := b.index[loc]; dup {
			continue
		}

		b.index[loc] = len(b.domain)
		b.domain = append(b.domain, loc)
	}

	return b
}

// Domain returns the ordered locations. The slice must not be modified.
func (b *Band) Domain() []string {
	return b.domain
}

// Len returns the number of bands.
func (b *Band) Len() int {
	return len(b.domain)
}

// Range returns the pixel range.
func (b *Band) Range() (r0, r1 float64) {
	return b.r0, b.r1
}

// Step returns the height of one band.
func (b *Band) Step() float64 {
	if len(b.domain) == 0 {
		return 0
	}

	return (b.r1 - b.r0) / float64(len(b.domain))
}

// Map returns the starting pixel of the location's band.
func (b *Band) Map(loc string) (float64, bool) {
	i, ok := b.index[loc]
	if !ok {
		return 0, false
	}

	return b.r0 + float64(i)*b.Step(), true
}

// Index returns the position of loc in the domain.
func (b *Band) Index(loc string) (int, bool) {
	i, ok := b.index[loc]

	return i, ok
}

// InvertRange returns the contiguous run of locations whose bands are found
// for the pixel range [low, high]. The walk starts at the band nearest to
// low, rounded, and advances while band starts stay at or below high,
// keeping bands that end after low. When that yields nothing, the band
// containing low is returned if it intersects the range.
func (b *Band) InvertRange(low, high float64) []string {
	n := len(b.domain)

	step := b.Step()
	if n == 0 || step <= 0 || math.IsNaN(low) || math.IsNaN(high) {
		return nil
	}

	if low > high {
		low, high = high, low
	}

	start := clampIndex(int(math.Round((low-b.r0)/step)), n)
	first, last := -1, -1

	for i := start; i < n; i++ {
		bandStart := b.r0 + float64(i)*step
		if bandStart > high {
			break
		}

		if bandStart+step > low {
			if first < 0 {
				first = i
			}

			last = i
		}
	}

	if first >= 0 {
		return b.domain[first : last+1]
	}

	containing := clampIndex(int(math.Floor((low-b.r0)/step)), n)
	bandStart := b.r0 + float64(containing)*step
	if bandStart <= high && bandStart+step >= low {
		return b.domain[containing : containing+1]
	}

	return nil
}

func clampIndex(i, n int) int {
	return max(0, min(i, n-1))
}

// Package render arbitrates between debounced full redraws and synchronous
// quick redraws that reuse the last computed chart shape.
package render

import (
	"github.com/Sumatoshi-tech/traveler/internal/axis"
	"github.com/Sumatoshi-tech/traveler/internal/snapshot"
	"github.com/Sumatoshi-tech/traveler/internal/viewport"
)

// ChartShape is everything a drawer needs to paint one frame.
type ChartShape struct {
	Width    float64
	Height   float64
	BinCount int
	Time     axis.Linear
	// Locations places every known location in a band over the full
	// vertical extent.
	Locations *axis.Band
	// Visible lists the locations inside LocationWindow.
	Visible []string
	// LocationWindow is the vertical pixel window the shape was built for.
	LocationWindow    viewport.Window
	TimeSpillover     viewport.Window
	LocationSpillover viewport.Window
	// Data is the snapshot the shape was computed from.
	Data *snapshot.Snapshot
}

// TimeWindow returns the visible time domain.
func (s *ChartShape) TimeWindow() viewport.Window {
	return viewport.Window{Begin: s.Time.D0, End: s.Time.D1}
}

// Patch describes a viewport change applied to the last shape without
// recomputing it.
type Patch struct {
	Time     viewport.Window
	Location viewport.Window
	// VerticalScroll marks a change of the location window.
	VerticalScroll bool
}

// Transform maps old shape pixels to new ones: x' = ScaleX*x + TranslateX,
// y' = y + TranslateY.
type Transform struct {
	ScaleX     float64
	TranslateX float64
	TranslateY float64
}

// Identity reports whether the transform leaves every pixel in place.
func (t Transform) Identity() bool {
	return t.ScaleX == 1 && t.TranslateX == 0 && t.TranslateY == 0
}

// TransformFor computes the transform that moves shape onto patch.
func TransformFor(shape *ChartShape, patch Patch) Transform {
	r0, r1 := shape.Time.R0, shape.Time.R1
	d0, d1 := shape.Time.D0, shape.Time.D1
	tr := Transform{ScaleX: 1}

	if w := patch.Time.Width(); w > 0 && d1 > d0 {
		k := (r1 - r0) / w
		tr.ScaleX = (d1 - d0) / w
		tr.TranslateX = r0 + (d0-patch.Time.Begin)*k - r0*tr.ScaleX
	}

	if patch.VerticalScroll {
		tr.TranslateY = shape.LocationWindow.Begin - patch.Location.Begin
	}

	return tr
}

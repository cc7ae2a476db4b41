package viewport

// Model groups the horizontal time axis with the vertical location axis,
// whose units are pixels over the band scale extent.
type Model struct {
	Time     *Axis
	Location *Axis
}

// Options configures a Model.
type Options struct {
	TimeLimits       Window
	MinTimeWidth     float64
	LocationExtent   float64
	MinLocationWidth float64
}

// NewModel builds both axes, each initially showing its full limits.
func NewModel(opts Options) (*Model, error) {
	timeAxis, err := NewAxis(opts.TimeLimits, opts.MinTimeWidth)
	if err != nil {
		return nil, err
	}

	locAxis, err := NewAxis(Window{Begin: 0, End: opts.LocationExtent}, opts.MinLocationWidth)
	if err != nil {
		return nil, err
	}

	return &Model{Time: timeAxis, Location: locAxis}, nil
}

// Generation combines both axis generations into one monotonic counter.
func (m *Model) Generation() uint64 {
	return m.Time.Generation() + m.Location.Generation()
}

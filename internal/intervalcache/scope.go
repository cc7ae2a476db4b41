package intervalcache

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/Sumatoshi-tech/traveler/internal/traceapi"
)

// ErrInvalidScope is returned for scopes with a non-finite or inverted window.
var ErrInvalidScope = errors.New("invalid query scope")

// Scope is the dataset window a query fetches.
type Scope struct {
	Dataset   string
	Begin     float64
	End       float64
	Locations []string
}

// Validate checks the scope window.
func (s Scope) Validate() error {
	if s.Dataset == "" {
		return fmt.Errorf("%w: empty dataset", ErrInvalidScope)
	}

	if math.IsNaN(s.Begin) || math.IsNaN(s.End) || math.IsInf(s.Begin, 0) || math.IsInf(s.End, 0) {
		return fmt.Errorf("%w: [%v, %v]", ErrInvalidScope, s.Begin, s.End)
	}

	if s.End < s.Begin {
		return fmt.Errorf("%w: end %v before begin %v", ErrInvalidScope, s.End, s.Begin)
	}

	return nil
}

// Equal reports whether both scopes fetch the same data.
func (s Scope) Equal(other Scope) bool {
	return s.Dataset == other.Dataset &&
		s.Begin == other.Begin &&
		s.End == other.End &&
		slices.Equal(s.Locations, other.Locations)
}

// Query converts the scope into a service interval query.
func (s Scope) Query() traceapi.IntervalQuery {
	return traceapi.IntervalQuery{
		Dataset:   s.Dataset,
		Begin:     s.Begin,
		End:       s.End,
		Locations: slices.Clone(s.Locations),
	}
}

package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/Sumatoshi-tech/traveler/internal/trace"
	"github.com/Sumatoshi-tech/traveler/internal/traceapi"
)

// LabelMinBins is the default shortest clipped width, in bins, that gets a label.
const LabelMinBins = 10

// Label marks a child occurrence wide enough to carry its name.
type Label struct {
	Name     string
	Location string
	StartBin int
	EndBin   int
}

// Result holds the series of one aggregation.
type Result struct {
	Bins Bins
	// Locations lists every location with children, in first-seen order.
	Locations   []string
	PerLocation map[string][]float64
	// Merged counts simultaneously active locations per bin. It never
	// exceeds len(Locations).
	Merged []float64
	Labels []Label
}

// Bound returns the largest value the merged series can take.
func (r *Result) Bound() float64 {
	return float64(len(r.Locations))
}

// Aggregator bins the children of primitive nodes.
type Aggregator struct {
	source       UtilizationSource
	logger       *slog.Logger
	labelMinBins int
}

// New creates an aggregator. A nil source weights every active bin by 1.
func New(source UtilizationSource, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Aggregator{source: source, logger: logger, labelMinBins: LabelMinBins}
}

// SetLabelMinBins changes the label threshold. Non-positive values restore
// the default.
func (a *Aggregator) SetLabelMinBins(n int) {
	if n <= 0 {
		n = LabelMinBins
	}

	a.labelMinBins = n
}

// Aggregate computes the per-location and merged series of node's children
// over bins, and caches the merged series on the node.
func (a *Aggregator) Aggregate(ctx context.Context, arena *trace.Arena, node trace.NodeID, bins Bins) (*Result, error) {
	err := bins.Validate()
	if err != nil {
		return nil, err
	}

	if _, ok := arena.Node(node); !ok {
		return nil, fmt.Errorf("aggregate node %d: %w", node, trace.ErrUnknownNode)
	}

	locations := arena.Locations(node)
	res := &Result{
		Bins:        bins,
		Locations:   locations,
		PerLocation: make(map[string][]float64, len(locations)),
	}

	for _, loc := range locations {
		res.PerLocation[loc] = make([]float64, bins.Count)
	}

	fetched := make(map[string]map[string][]float64)

	for _, child := range arena.Children(node) {
		if child.Leave < bins.DomainBegin || child.Enter > bins.DomainEnd {
			continue
		}

		weights, err := a.weights(ctx, fetched, child, locations, bins)
		if err != nil {
			return nil, err
		}

		start := bins.Index(max(bins.DomainBegin, child.Enter))
		end := bins.Index(min(bins.DomainEnd, child.Leave))
		series := res.PerLocation[child.Location]

		for b := start; b <= end; b++ {
			if weights == nil {
				series[b]++
			} else {
				series[b] += weights[b]
			}
		}

		width := min(bins.DomainEnd, child.Leave) - max(bins.DomainBegin, child.Enter)
		if width >= float64(a.labelMinBins)*bins.Size() {
			res.Labels = append(res.Labels, Label{
				Name:     child.Name,
				Location: child.Location,
				StartBin: start,
				EndBin:   end,
			})
		}
	}

	res.Merged = make([]float64, bins.Count)

	for _, loc := range locations {
		for b, v := range res.PerLocation[loc] {
			res.Merged[b] += min(1, v)
		}
	}

	err = arena.SetUtil(node, trace.Series{
		Begin:  bins.DomainBegin,
		End:    bins.DomainEnd,
		Values: slices.Clone(res.Merged),
	})
	if err != nil {
		return nil, fmt.Errorf("cache utilization: %w", err)
	}

	a.logger.DebugContext(ctx, "aggregate: node aggregated",
		"node", node, "children", len(arena.Children(node)), "locations", len(locations), "bins", bins.Count)

	return res, nil
}

// weights returns the per-bin weight of child, or nil for a weight of 1.
// Source lookups happen once per distinct primitive name. A series cached on
// the child is used only when it was binned with the same layout.
func (a *Aggregator) weights(
	ctx context.Context, fetched map[string]map[string][]float64, child trace.Node, locations []string, bins Bins,
) ([]float64, error) {
	if a.source != nil {
		util, ok := fetched[child.Name]
		if !ok {
			var err error

			util, err = a.source.Utilization(ctx, child.Name, locations, bins)
			if err != nil {
				return nil, err
			}

			fetched[child.Name] = util
		}

		if series := util[child.Location]; len(series) == bins.Count {
			return series, nil
		}
	}

	if child.Util.Fits(bins.DomainBegin, bins.DomainEnd, bins.Count) {
		return child.Util.Values, nil
	}

	return nil, nil
}

// ClampSeries returns a copy of series limited to [0, bound].
func ClampSeries(series []float64, bound float64) []float64 {
	out := make([]float64, len(series))
	for i, v := range series {
		out[i] = max(0, min(v, bound))
	}

	return out
}

// FromForward builds a primitive node from a trace-forward payload requested
// with the bins layout. Children are added location by location in sorted
// order, keeping record order within a location.
func FromForward(name, nodeID string, fwd traceapi.Forward, bins Bins) (*trace.Arena, trace.NodeID, error) {
	arena := trace.NewArena()
	root := arena.AddRoot(name, nodeID)

	locations := make([]string, 0, len(fwd))
	for loc := range fwd {
		locations = append(locations, loc)
	}

	sort.Strings(locations)

	for _, loc := range locations {
		for _, rec := range fwd[loc] {
			iv := trace.Interval{Enter: rec.StartTime, Leave: rec.EndTime, Location: loc, Primitive: rec.Name}

			err := iv.Validate()
			if err != nil {
				return nil, 0, fmt.Errorf("%w: forward record %s: %w", traceapi.ErrQueryFailed, rec.Name, err)
			}

			util := trace.Series{Begin: bins.DomainBegin, End: bins.DomainEnd, Values: slices.Clone(rec.Util)}

			_, err = arena.AddChild(root, rec.Name, loc, rec.StartTime, rec.EndTime, util)
			if err != nil {
				return nil, 0, fmt.Errorf("add forward child: %w", err)
			}
		}
	}

	return arena, root, nil
}

package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Sumatoshi-tech/traveler/internal/aggregate"
	"github.com/Sumatoshi-tech/traveler/internal/trace"
	"github.com/Sumatoshi-tech/traveler/internal/traceapi"
	"github.com/Sumatoshi-tech/traveler/internal/viewport"
)

// Selection is the primitive node currently shown in a utilization view.
type Selection struct {
	Arena *trace.Arena
	Root  trace.NodeID
}

// UtilizationView shows the binned utilization of one selected primitive.
type UtilizationView struct {
	client  traceapi.Client
	dataset string
	agg     *aggregate.Aggregator
	logger  *slog.Logger

	mu        sync.Mutex
	selection *Selection
}

// NewUtilizationView creates a view with no selection.
func NewUtilizationView(client traceapi.Client, dataset string, agg *aggregate.Aggregator, logger *slog.Logger) *UtilizationView {
	if logger == nil {
		logger = slog.Default()
	}

	return &UtilizationView{client: client, dataset: dataset, agg: agg, logger: logger}
}

// Select fetches the children of the primitive nodeID over window, builds a
// fresh node for them, dropping any previous selection, and aggregates it
// into bins buckets.
func (u *UtilizationView) Select(
	ctx context.Context, name, nodeID string, window viewport.Window, bins int,
) (*aggregate.Result, error) {
	layout := aggregate.Bins{DomainBegin: window.Begin, DomainEnd: window.End, Count: bins}

	err := layout.Validate()
	if err != nil {
		return nil, err
	}

	fwd, err := u.client.PrimitiveTraceForward(ctx, u.dataset, nodeID, bins, window.Begin, window.End)
	if err != nil {
		return nil, fmt.Errorf("trace forward %s: %w", nodeID, err)
	}

	arena, root, err := aggregate.FromForward(name, nodeID, fwd, layout)
	if err != nil {
		return nil, err
	}

	u.mu.Lock()
	u.selection = &Selection{Arena: arena, Root: root}
	u.mu.Unlock()

	res, err := u.agg.Aggregate(ctx, arena, root, layout)
	if err != nil {
		return nil, err
	}

	u.logger.DebugContext(ctx, "timeline: primitive selected",
		"primitive", name, "children", arena.Len()-1, "locations", len(res.Locations))

	return res, nil
}

// Reaggregate bins the current selection again for a new window without
// refetching it. Children outside the window contribute nothing. Child
// utilization fetched for another layout is not reused.
func (u *UtilizationView) Reaggregate(ctx context.Context, window viewport.Window, bins int) (*aggregate.Result, error) {
	u.mu.Lock()
	sel := u.selection
	u.mu.Unlock()

	if sel == nil {
		return nil, ErrNoSelection
	}

	return u.agg.Aggregate(ctx, sel.Arena, sel.Root, aggregate.Bins{
		DomainBegin: window.Begin,
		DomainEnd:   window.End,
		Count:       bins,
	})
}

// Selection returns the current selection, or nil.
func (u *UtilizationView) Selection() *Selection {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.selection
}

// Clear drops the current selection.
func (u *UtilizationView) Clear() {
	u.mu.Lock()
	u.selection = nil
	u.mu.Unlock()
}

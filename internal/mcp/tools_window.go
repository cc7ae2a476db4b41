package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/traveler/internal/intervalcache"
	"github.com/Sumatoshi-tech/traveler/internal/report"
)

// WindowOutput is the result of traveler_window.
type WindowOutput struct {
	Dataset      string               `json:"dataset"`
	Begin        float64              `json:"begin"`
	End          float64              `json:"end"`
	Phase        string               `json:"phase"`
	Message      string               `json:"message,omitempty"`
	NarrowWindow bool                 `json:"narrow_window,omitempty"`
	Intervals    int                  `json:"intervals"`
	Locations    []report.LocationRow `json:"locations"`
	Truncated    bool                 `json:"truncated,omitempty"`
}

func (s *Server) handleWindow(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input WindowInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if s.deps.Client == nil {
		return errorResult(ErrNoClient)
	}

	dataset := s.dataset(input.Dataset)
	if dataset == "" {
		return errorResult(ErrEmptyDataset)
	}

	err := validateWindow(input.Begin, input.End)
	if err != nil {
		return errorResult(err)
	}

	opts := s.deps.Cache
	opts.Logger = s.logger
	opts.Tracer = s.tracer
	opts.Metrics = s.deps.CacheMetrics
	opts.Listener = intervalcache.Listener{}

	cache := intervalcache.New(s.deps.Client, opts)

	err = cache.BeginQuery(ctx, intervalcache.Scope{
		Dataset:   dataset,
		Begin:     input.Begin,
		End:       input.End,
		Locations: input.Locations,
	})
	if err != nil {
		return errorResult(err)
	}

	select {
	case <-cache.Done():
	case <-ctx.Done():
		return errorResult(fmt.Errorf("window query: %w", ctx.Err()))
	}

	st := cache.Status()
	if st.Phase == intervalcache.PhaseError {
		return errorResult(fmt.Errorf("window query: %s", st.Message))
	}

	snap := cache.Committed()
	rows := report.Summarize(snap)

	out := WindowOutput{
		Dataset:      dataset,
		Begin:        input.Begin,
		End:          input.End,
		Phase:        st.Phase.String(),
		Message:      st.Message,
		NarrowWindow: st.NarrowWindow,
		Intervals:    snap.Len(),
		Locations:    rows,
	}

	if input.MaxRows > 0 && len(rows) > input.MaxRows {
		out.Locations = rows[:input.MaxRows]
		out.Truncated = true
	}

	s.logger.DebugContext(ctx, "mcp: window served",
		"dataset", dataset, "intervals", out.Intervals, "state", cache.State().String())

	return jsonResult(out)
}

package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/traveler/internal/aggregate"
	"github.com/Sumatoshi-tech/traveler/internal/timeline"
	"github.com/Sumatoshi-tech/traveler/internal/viewport"
)

// LabelOutput is one labelled child occurrence.
type LabelOutput struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	StartBin int    `json:"start_bin"`
	EndBin   int    `json:"end_bin"`
}

// UtilizationOutput is the result of traveler_utilization.
type UtilizationOutput struct {
	Dataset     string               `json:"dataset"`
	Node        string               `json:"node"`
	Name        string               `json:"name"`
	Begin       float64              `json:"begin"`
	End         float64              `json:"end"`
	BinSize     float64              `json:"bin_size"`
	Bound       float64              `json:"bound"`
	Merged      []float64            `json:"merged"`
	Locations   []string             `json:"locations"`
	PerLocation map[string][]float64 `json:"per_location"`
	Labels      []LabelOutput        `json:"labels"`
}

func (s *Server) handleUtilization(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input UtilizationInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if s.deps.Client == nil {
		return errorResult(ErrNoClient)
	}

	dataset := s.dataset(input.Dataset)
	if dataset == "" {
		return errorResult(ErrEmptyDataset)
	}

	if input.Node == "" {
		return errorResult(ErrEmptyNode)
	}

	err := validateWindow(input.Begin, input.End)
	if err != nil {
		return errorResult(err)
	}

	bins := input.Bins
	if bins <= 0 {
		bins = DefaultBins
	}

	if bins > MaxBins {
		return errorResult(fmt.Errorf("%w: %d (max %d)", ErrTooManyBins, bins, MaxBins))
	}

	name := input.Name
	if name == "" {
		name = input.Node
	}

	agg := aggregate.New(s.source(dataset), s.logger)
	agg.SetLabelMinBins(s.deps.LabelMinBins)

	view := timeline.NewUtilizationView(s.deps.Client, dataset, agg, s.logger)

	res, err := view.Select(ctx, name, input.Node, viewport.Window{Begin: input.Begin, End: input.End}, bins)
	if err != nil {
		return errorResult(err)
	}

	labels := make([]LabelOutput, len(res.Labels))
	for i, l := range res.Labels {
		labels[i] = LabelOutput{Name: l.Name, Location: l.Location, StartBin: l.StartBin, EndBin: l.EndBin}
	}

	return jsonResult(UtilizationOutput{
		Dataset:     dataset,
		Node:        input.Node,
		Name:        name,
		Begin:       input.Begin,
		End:         input.End,
		BinSize:     res.Bins.Size(),
		Bound:       res.Bound(),
		Merged:      res.Merged,
		Locations:   res.Locations,
		PerLocation: res.PerLocation,
		Labels:      labels,
	})
}

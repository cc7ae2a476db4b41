package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNameWindow      = "traveler_window"
	ToolNameUtilization = "traveler_utilization"
)

// Input limits.
const (
	// DefaultBins is the bin count used when a utilization call names none.
	DefaultBins = 100
	// MaxBins bounds the bin count of one utilization call.
	MaxBins = 10000
)

// Sentinel errors for tool input validation.
var (
	// ErrNoClient indicates the server was built without a trace client.
	ErrNoClient = errors.New("no trace service configured")
	// ErrEmptyDataset indicates neither the call nor the server names a dataset.
	ErrEmptyDataset = errors.New("dataset parameter is required when no default dataset is configured")
	// ErrInvalidWindow indicates a non-finite or empty time window.
	ErrInvalidWindow = errors.New("begin and end must be finite with begin < end")
	// ErrEmptyNode indicates the node parameter is empty.
	ErrEmptyNode = errors.New("node parameter is required and must not be empty")
	// ErrTooManyBins indicates the bin count exceeds the limit.
	ErrTooManyBins = errors.New("bins exceeds maximum")
)

// Input types (auto-generate JSON schemas via struct tags).

// WindowInput is the input schema for the traveler_window tool.
type WindowInput struct {
	Dataset   string   `json:"dataset,omitempty"   jsonschema:"dataset id (default: the configured dataset)"`
	Begin     float64  `json:"begin"               jsonschema:"start of the time window"`
	End       float64  `json:"end"                 jsonschema:"end of the time window"`
	Locations []string `json:"locations,omitempty" jsonschema:"optional list of locations to restrict the query to"`
	MaxRows   int      `json:"max_rows,omitempty"  jsonschema:"maximum number of locations to return (default: all)"`
}

// UtilizationInput is the input schema for the traveler_utilization tool.
type UtilizationInput struct {
	Dataset string  `json:"dataset,omitempty" jsonschema:"dataset id (default: the configured dataset)"`
	Node    string  `json:"node"              jsonschema:"id of the primitive node whose children are aggregated"`
	Name    string  `json:"name,omitempty"    jsonschema:"display name of the primitive (default: the node id)"`
	Begin   float64 `json:"begin"             jsonschema:"start of the time window"`
	End     float64 `json:"end"               jsonschema:"end of the time window"`
	Bins    int     `json:"bins,omitempty"    jsonschema:"number of bins (default: 100)"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// validateWindow checks common window input constraints.
func validateWindow(begin, end float64) error {
	if math.IsNaN(begin) || math.IsNaN(end) || math.IsInf(begin, 0) || math.IsInf(end, 0) || end <= begin {
		return fmt.Errorf("%w: [%v, %v]", ErrInvalidWindow, begin, end)
	}

	return nil
}

// Package mcp implements a Model Context Protocol server exposing trace
// window and utilization queries as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/traveler/internal/aggregate"
	"github.com/Sumatoshi-tech/traveler/internal/intervalcache"
	"github.com/Sumatoshi-tech/traveler/internal/observability"
	"github.com/Sumatoshi-tech/traveler/internal/traceapi"
	"github.com/Sumatoshi-tech/traveler/pkg/version"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "traveler"

	// toolCount is the expected number of registered tools.
	toolCount = 2
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Client answers trace queries. Nil makes every tool call fail.
	Client traceapi.Client

	// Dataset is used when a tool call names no dataset.
	Dataset string

	// Cache tunes the interval cache behind traveler_window.
	Cache intervalcache.Options

	// UtilCacheEntries bounds the per-dataset utilization cache.
	UtilCacheEntries int

	// LabelMinBins overrides the label threshold of traveler_utilization.
	LabelMinBins int

	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// CacheMetrics is an optional cache recorder shared by every tool call.
	CacheMetrics *observability.CacheMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with traveler tool registrations.
type Server struct {
	inner   *mcpsdk.Server
	deps    ServerDeps
	logger  *slog.Logger
	mu      sync.RWMutex
	tools   []string
	sources map[string]*aggregate.CachedSource
	metrics *observability.REDMetrics
	tracer  trace.Tracer
}

// NewServer creates a new MCP server with all traveler tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		opts,
	)

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srv := &Server{
		inner:   inner,
		deps:    deps,
		logger:  logger,
		tools:   make([]string, 0, toolCount),
		sources: make(map[string]*aggregate.CachedSource),
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameWindow,
		Description: windowToolDescription,
	}, withMetrics(s.metrics, ToolNameWindow, withTracing(s.tracer, ToolNameWindow, s.handleWindow)))

	s.trackTool(ToolNameWindow)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameUtilization,
		Description: utilizationToolDescription,
	}, withMetrics(s.metrics, ToolNameUtilization, withTracing(s.tracer, ToolNameUtilization, s.handleUtilization)))

	s.trackTool(ToolNameUtilization)
}

// source returns the cached utilization source of dataset.
func (s *Server) source(dataset string) *aggregate.CachedSource {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[dataset]
	if !ok {
		src = aggregate.NewCachedSource(
			aggregate.ServiceSource{Client: s.deps.Client, Dataset: dataset},
			s.deps.UtilCacheEntries,
			s.deps.CacheMetrics,
		)
		s.sources[dataset] = src
	}

	return src
}

func (s *Server) dataset(requested string) string {
	if requested != "" {
		return requested
	}

	return s.deps.Dataset
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

// withTracing wraps an MCP tool handler to create an OTel span per invocation
// and include trace_id in the response content when sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

// withMetrics wraps an MCP tool handler to record RED metrics per invocation.
func withMetrics[Input any](
	metrics *observability.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, mcpSpanPrefix+toolName)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}

		metrics.RecordRequest(ctx, mcpSpanPrefix+toolName, status, time.Since(start))

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// Tool description constants.
const (
	windowToolDescription = "Fetch the execution intervals of a trace dataset inside a time window. " +
		"Returns the query status and a per-location summary (interval count, busy time, first and last activity). " +
		"Windows holding more intervals than the render cutoff report narrow_window instead of data."

	utilizationToolDescription = "Aggregate the utilization of one primitive over a time window. " +
		"Returns the merged series (number of simultaneously active locations per bin), " +
		"the per-location series and the children wide enough to label."
)

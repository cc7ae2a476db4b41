package mcp_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/traveler/internal/intervalcache"
	"github.com/Sumatoshi-tech/traveler/internal/mcp"
	"github.com/Sumatoshi-tech/traveler/internal/trace"
	"github.com/Sumatoshi-tech/traveler/internal/tracestore"
)

const (
	testDataset = "demo"
	testTimeout = 10 * time.Second
	locA        = "0-0"
	locB        = "0-1"
)

func demoStore() *tracestore.Store {
	s := tracestore.New(nil)
	s.Add(testDataset, []trace.Interval{
		{Enter: 0, Leave: 100, Location: locA, Primitive: "main"},
		{Enter: 0, Leave: 100, Location: locB, Primitive: "main"},
		{Enter: 10, Leave: 30, Location: locA, Primitive: "solve", Parent: "main"},
		{Enter: 40, Leave: 90, Location: locA, Primitive: "solve", Parent: "main"},
		{Enter: 20, Leave: 60, Location: locB, Primitive: "io", Parent: "main"},
	})

	return s
}

// connect runs srv on an in-memory transport and returns a client session.
func connect(t *testing.T, srv *mcp.Server) *mcpsdk.ClientSession {
	t.Helper()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return session
}

func callTool(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotNil(t, result)

	return result
}

func decodeText(t *testing.T, result *mcpsdk.CallToolResult, out any) {
	t.Helper()

	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(text.Text), out))
}

func TestNewServer_ToolsRegistered(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})
	require.NotNil(t, srv)

	assert.Equal(t, []string{mcp.ToolNameUtilization, mcp.ToolNameWindow}, srv.ListToolNames())
}

func TestServer_Run_CancelledContext(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := srv.Run(ctx)
	require.Error(t, err)
}

func TestMCPServer_ToolsList(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	toolsResult, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	require.Len(t, toolsResult.Tools, 2)

	for _, tool := range toolsResult.Tools {
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
	}
}

func TestMCPServer_Window(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{Client: demoStore(), Dataset: testDataset}))

	result := callTool(t, session, mcp.ToolNameWindow, map[string]any{"begin": 0, "end": 100})
	require.False(t, result.IsError)

	var out mcp.WindowOutput
	decodeText(t, result, &out)

	assert.Equal(t, testDataset, out.Dataset)
	assert.Equal(t, "ready", out.Phase)
	assert.Equal(t, 5, out.Intervals)
	require.Len(t, out.Locations, 2)
	assert.Equal(t, locA, out.Locations[0].Location)
	assert.Equal(t, 3, out.Locations[0].Intervals)
}

func TestMCPServer_Window_OverCutoff(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{
		Client:  demoStore(),
		Dataset: testDataset,
		Cache:   intervalcache.Options{RenderCutoff: 2},
	}))

	result := callTool(t, session, mcp.ToolNameWindow, map[string]any{"begin": 0, "end": 100, "max_rows": 1})
	require.False(t, result.IsError)

	var out mcp.WindowOutput
	decodeText(t, result, &out)

	assert.True(t, out.NarrowWindow)
	assert.Zero(t, out.Intervals)
	assert.Empty(t, out.Locations)
}

func TestMCPServer_Window_Errors(t *testing.T) {
	t.Parallel()

	noClient := connect(t, mcp.NewServer(mcp.ServerDeps{Dataset: testDataset}))
	assert.True(t, callTool(t, noClient, mcp.ToolNameWindow, map[string]any{"begin": 0, "end": 1}).IsError)

	session := connect(t, mcp.NewServer(mcp.ServerDeps{Client: demoStore()}))
	assert.True(t, callTool(t, session, mcp.ToolNameWindow, map[string]any{"begin": 0, "end": 1}).IsError)
	assert.True(t, callTool(t, session, mcp.ToolNameWindow,
		map[string]any{"dataset": testDataset, "begin": 5, "end": 5}).IsError)
	assert.True(t, callTool(t, session, mcp.ToolNameWindow,
		map[string]any{"dataset": "missing", "begin": 0, "end": 1}).IsError)
}

func TestMCPServer_Utilization(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{
		Client:       demoStore(),
		Dataset:      testDataset,
		LabelMinBins: 5,
	}))

	result := callTool(t, session, mcp.ToolNameUtilization, map[string]any{
		"node": "main", "begin": 0, "end": 100, "bins": 10,
	})
	require.False(t, result.IsError)

	var out mcp.UtilizationOutput
	decodeText(t, result, &out)

	assert.Equal(t, "main", out.Name)
	assert.InDelta(t, 10.0, out.BinSize, 1e-9)
	assert.InDelta(t, 2.0, out.Bound, 0)
	assert.Equal(t, []string{locA, locB}, out.Locations)
	require.Len(t, out.Merged, 10)
	assert.InDelta(t, 0.0, out.Merged[0], 1e-9)
	assert.InDelta(t, 2.0, out.Merged[2], 1e-9)

	for _, v := range out.Merged {
		assert.LessOrEqual(t, v, out.Bound)
	}

	require.Len(t, out.Labels, 1)
	assert.Equal(t, "solve", out.Labels[0].Name)
	assert.Equal(t, locA, out.Labels[0].Location)
}

func TestMCPServer_Utilization_Errors(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{Client: demoStore(), Dataset: testDataset}))

	assert.True(t, callTool(t, session, mcp.ToolNameUtilization, map[string]any{"begin": 0, "end": 1}).IsError)
	assert.True(t, callTool(t, session, mcp.ToolNameUtilization,
		map[string]any{"node": "main", "begin": 0, "end": 1, "bins": mcp.MaxBins + 1}).IsError)
	assert.True(t, callTool(t, session, mcp.ToolNameUtilization,
		map[string]any{"node": "nope", "begin": 0, "end": 1}).IsError)
}

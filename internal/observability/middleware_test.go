package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/traveler/internal/observability"
)

var discardLogger = slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))

func newTestTracer(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	return exporter, tp
}

func TestHTTPMiddleware_CreatesSpan(t *testing.T) {
	t.Parallel()

	exporter, tp := newTestTracer(t)

	handler := http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})

	mw := observability.HTTPMiddleware(tp.Tracer("test"), discardLogger, nil, handler)
	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/datasets/a/histogram", http.NoBody))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /datasets/a/histogram", spans[0].Name)
}

func TestHTTPMiddleware_ErrorStatus(t *testing.T) {
	t.Parallel()

	exporter, tp := newTestTracer(t)

	handler := http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		http.Error(rw, "boom", http.StatusInternalServerError)
	})

	observability.HTTPMiddleware(tp.Tracer("test"), discardLogger, nil, handler).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", http.NoBody))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestHTTPMiddleware_ForwardsFlush(t *testing.T) {
	t.Parallel()

	_, tp := newTestTracer(t)

	flushable := false

	handler := http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		f, ok := rw.(http.Flusher)
		flushable = ok

		_, _ = rw.Write([]byte("line\n"))

		if ok {
			f.Flush()
		}
	})

	rec := httptest.NewRecorder()
	observability.HTTPMiddleware(tp.Tracer("test"), discardLogger, nil, handler).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", http.NoBody))

	assert.True(t, flushable)
	assert.True(t, rec.Flushed)
}

func TestHTTPMiddleware_RecordsRED(t *testing.T) {
	t.Parallel()

	_, tp := newTestTracer(t)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	var logs bytes.Buffer

	handler := http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusNoContent)
	})

	observability.HTTPMiddleware(tp.Tracer("test"), slog.New(slog.NewTextHandler(&logs, nil)), red, handler).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := make(map[string]bool)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}

	assert.True(t, names["traveler.requests.total"])
	assert.True(t, names["traveler.request.duration.seconds"])
	assert.Contains(t, logs.String(), "status=204")
}

func TestRecordSpanError(t *testing.T) {
	t.Parallel()

	exporter, tp := newTestTracer(t)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	observability.RecordSpanError(span, nil)
	observability.RecordSpanError(span, errTestIndexBuilding)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, errTestIndexBuilding.Error(), spans[0].Status.Description)
}

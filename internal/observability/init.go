package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/traveler/internal/config"
)

// Providers holds the initialized observability providers.
type Providers struct {
	// Tracer is the named tracer for creating spans.
	Tracer trace.Tracer

	// Meter is the named meter for creating instruments.
	Meter metric.Meter

	// Logger is the context-aware structured logger.
	Logger *slog.Logger

	// Shutdown flushes pending telemetry within the deadline of its context.
	// Must be called before process exit.
	Shutdown func(ctx context.Context) error

	// Exporting reports whether spans and metrics leave the process.
	Exporting bool
}

// Init builds the logger and, when the telemetry section names a collector,
// the exporting tracer and meter providers. Without a collector the
// providers are no-op and the global OTel state is left alone.
func Init(cfg Config) (Providers, error) {
	logger := NewLogger(cfg)

	col, ok := collectorFor(cfg.Telemetry)
	if !ok {
		return Providers{
			Tracer:   nooptrace.NewTracerProvider().Tracer(serviceName),
			Meter:    noopmetric.NewMeterProvider().Meter(serviceName),
			Logger:   logger,
			Shutdown: func(context.Context) error { return nil },
		}, nil
	}

	providers, err := col.start(context.Background(), cfg)
	if err != nil {
		return Providers{}, err
	}

	providers.Logger = logger
	logger.Debug("exporting telemetry", "endpoint", col.endpoint, "sample_ratio", col.sampleRatio)

	return providers, nil
}

// NewLogger builds the structured logger described by cfg without touching
// the global OTel providers.
func NewLogger(cfg Config) *slog.Logger {
	out := cfg.LogWriter
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: cfg.level()}

	var inner slog.Handler
	if cfg.Logging.JSON {
		inner = slog.NewJSONHandler(out, handlerOpts)
	} else {
		inner = slog.NewTextHandler(out, handlerOpts)
	}

	return slog.New(NewTracingHandler(inner, serviceName, cfg.Mode))
}

// collector is the OTLP gRPC endpoint both pipelines export to.
type collector struct {
	endpoint    string
	headers     map[string]string
	insecure    bool
	sampleRatio float64
}

func collectorFor(t config.TelemetryConfig) (collector, bool) {
	if t.OTLPEndpoint == "" {
		return collector{}, false
	}

	return collector{
		endpoint:    t.OTLPEndpoint,
		headers:     ParseOTLPHeaders(t.OTLPHeaders),
		insecure:    t.OTLPInsecure,
		sampleRatio: t.SampleRatio,
	}, true
}

// sampler keeps a parent's decision and samples roots at the configured
// ratio. A ratio outside (0, 1) samples every root.
func (c collector) sampler() sdktrace.Sampler {
	if c.sampleRatio > 0 && c.sampleRatio < 1 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.sampleRatio))
	}

	return sdktrace.ParentBased(sdktrace.AlwaysSample())
}

func (c collector) spanExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(c.endpoint)}
	if c.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if c.headers != nil {
		opts = append(opts, otlptracegrpc.WithHeaders(c.headers))
	}

	return otlptracegrpc.New(ctx, opts...)
}

func (c collector) metricExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(c.endpoint)}
	if c.insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	if c.headers != nil {
		opts = append(opts, otlpmetricgrpc.WithHeaders(c.headers))
	}

	return otlpmetricgrpc.New(ctx, opts...)
}

// start wires both exporters into SDK providers tagged with the process
// mode and installs them as the OTel globals.
func (c collector) start(ctx context.Context, cfg Config) (Providers, error) {
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(cfg.Version),
		attribute.String("app.mode", string(cfg.Mode)),
	))
	if err != nil {
		return Providers{}, fmt.Errorf("build otel resource: %w", err)
	}

	spans, err := c.spanExporter(ctx)
	if err != nil {
		return Providers{}, fmt.Errorf("create trace exporter for %s: %w", c.endpoint, err)
	}

	metrics, err := c.metricExporter(ctx)
	if err != nil {
		return Providers{}, errors.Join(
			fmt.Errorf("create metric exporter for %s: %w", c.endpoint, err),
			spans.Shutdown(ctx),
		)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spans),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(c.sampler()),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics)),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return Providers{
		Tracer: tp.Tracer(serviceName),
		Meter:  mp.Meter(serviceName),
		Shutdown: func(ctx context.Context) error {
			return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
		},
		Exporting: true,
	}, nil
}

// ParseOTLPHeaders parses the telemetry.otlp_headers setting, a
// "key=value,key=value" list. Returns nil for empty or invalid input.
func ParseOTLPHeaders(raw string) map[string]string {
	if raw == "" {
		return nil
	}

	result := make(map[string]string)

	for pair := range strings.SplitSeq(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}

		result[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	if len(result) == 0 {
		return nil
	}

	return result
}

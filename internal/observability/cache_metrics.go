package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricQueriesStarted    = "traveler.cache.queries.started"
	metricQueriesSuperseded = "traveler.cache.queries.superseded"
	metricRecordsMerged     = "traveler.cache.records.merged"
	metricCommits           = "traveler.cache.commits"
	metricProbes            = "traveler.cache.probes"
	metricStreamDuration    = "traveler.cache.stream.duration.seconds"
	metricUtilCacheHits     = "traveler.aggregate.util_cache.hits"
	metricUtilCacheMisses   = "traveler.aggregate.util_cache.misses"

	attrOutcome = "outcome"
)

// Probe outcomes.
const (
	ProbeEmpty      = "empty"
	ProbeOverCutoff = "over_cutoff"
	ProbeStream     = "stream"
	ProbeLoading    = "loading"
	ProbeFailed     = "failed"
)

// CacheMetrics instruments the streaming interval cache and the utilization
// cache of the aggregator. A nil *CacheMetrics records nothing.
type CacheMetrics struct {
	queriesStarted    metric.Int64Counter
	queriesSuperseded metric.Int64Counter
	recordsMerged     metric.Int64Counter
	commits           metric.Int64Counter
	probes            metric.Int64Counter
	streamDuration    metric.Float64Histogram
	utilHits          metric.Int64Counter
	utilMisses        metric.Int64Counter
}

// NewCacheMetrics creates the cache instruments from mt.
func NewCacheMetrics(mt metric.Meter) (*CacheMetrics, error) {
	b := newMetricBuilder(mt)

	cm := &CacheMetrics{
		queriesStarted:    b.counter(metricQueriesStarted, "Interval queries started", "{query}"),
		queriesSuperseded: b.counter(metricQueriesSuperseded, "Interval queries cancelled by a newer query", "{query}"),
		recordsMerged:     b.counter(metricRecordsMerged, "Streamed interval records merged", "{record}"),
		commits:           b.counter(metricCommits, "Committed snapshot replacements", "{commit}"),
		probes:            b.counter(metricProbes, "Cardinality probe outcomes", "{probe}"),
		streamDuration:    b.histogram(metricStreamDuration, "Interval stream duration", "s", durationBucketBoundaries...),
		utilHits:          b.counter(metricUtilCacheHits, "Utilization series served from cache", "{lookup}"),
		utilMisses:        b.counter(metricUtilCacheMisses, "Utilization series fetched from the service", "{lookup}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return cm, nil
}

// QueryStarted counts a new authoritative query.
func (cm *CacheMetrics) QueryStarted(ctx context.Context) {
	if cm != nil {
		cm.queriesStarted.Add(ctx, 1)
	}
}

// QuerySuperseded counts a query cancelled by a newer one.
func (cm *CacheMetrics) QuerySuperseded(ctx context.Context) {
	if cm != nil {
		cm.queriesSuperseded.Add(ctx, 1)
	}
}

// RecordsMerged counts records merged into an in-flight snapshot.
func (cm *CacheMetrics) RecordsMerged(ctx context.Context, n int) {
	if cm != nil {
		cm.recordsMerged.Add(ctx, int64(n))
	}
}

// Committed counts a committed snapshot replacement.
func (cm *CacheMetrics) Committed(ctx context.Context) {
	if cm != nil {
		cm.commits.Add(ctx, 1)
	}
}

// Probe counts a cardinality probe outcome.
func (cm *CacheMetrics) Probe(ctx context.Context, outcome string) {
	if cm != nil {
		cm.probes.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
	}
}

// StreamFinished records how long an interval stream ran.
func (cm *CacheMetrics) StreamFinished(ctx context.Context, d time.Duration) {
	if cm != nil {
		cm.streamDuration.Record(ctx, d.Seconds())
	}
}

// UtilLookup counts a utilization cache lookup.
func (cm *CacheMetrics) UtilLookup(ctx context.Context, hit bool) {
	switch {
	case cm == nil:
	case hit:
		cm.utilHits.Add(ctx, 1)
	default:
		cm.utilMisses.Add(ctx, 1)
	}
}

package aggregate

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/traveler/internal/observability"
	"github.com/Sumatoshi-tech/traveler/internal/traceapi"
	"github.com/Sumatoshi-tech/traveler/pkg/lru"
)

// DefaultCacheEntries bounds the utilization cache when no size is given.
const DefaultCacheEntries = 256

// UtilizationSource provides per-location utilization of a primitive.
type UtilizationSource interface {
	Utilization(ctx context.Context, primitive string, locations []string, bins Bins) (map[string][]float64, error)
}

// ServiceSource fetches utilization from the query service.
type ServiceSource struct {
	Client  traceapi.Client
	Dataset string
}

// Utilization calls the utilizationHistogram operation.
func (s ServiceSource) Utilization(
	ctx context.Context, primitive string, locations []string, bins Bins,
) (map[string][]float64, error) {
	util, err := s.Client.UtilizationHistogram(ctx, s.Dataset, primitive, locations, bins.Count, bins.DomainBegin, bins.DomainEnd)
	if err != nil {
		return nil, fmt.Errorf("utilization of %s: %w", primitive, err)
	}

	return util, nil
}

type utilKey struct {
	primitive string
	locations string
	bins      Bins
}

// CachedSource memoizes another source in an LRU cache.
type CachedSource struct {
	inner   UtilizationSource
	cache   *lru.Cache[utilKey, map[string][]float64]
	metrics *observability.CacheMetrics
}

// NewCachedSource wraps inner with a cache of at most entries results.
// metrics may be nil.
func NewCachedSource(inner UtilizationSource, entries int, metrics *observability.CacheMetrics) *CachedSource {
	if entries <= 0 {
		entries = DefaultCacheEntries
	}

	return &CachedSource{
		inner:   inner,
		cache:   lru.New(entries, lru.WithCloneFunc[utilKey](cloneSeries)),
		metrics: metrics,
	}
}

// Utilization returns a cached result or fetches and stores it. Failed
// fetches are not cached.
func (s *CachedSource) Utilization(
	ctx context.Context, primitive string, locations []string, bins Bins,
) (map[string][]float64, error) {
	key := utilKey{primitive: primitive, locations: strings.Join(locations, ","), bins: bins}

	if util, ok := s.cache.Get(key); ok {
		s.metrics.UtilLookup(ctx, true)

		return util, nil
	}

	s.metrics.UtilLookup(ctx, false)

	util, err := s.inner.Utilization(ctx, primitive, locations, bins)
	if err != nil {
		return nil, err
	}

	s.cache.Put(key, util)

	return util, nil
}

// Stats returns the cache counters.
func (s *CachedSource) Stats() lru.Stats {
	return s.cache.Stats()
}

func cloneSeries(m map[string][]float64) map[string][]float64 {
	if m == nil {
		return nil
	}

	out := make(map[string][]float64, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}

	return out
}

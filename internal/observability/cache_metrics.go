// Package observability exports parse cache statistics as OpenTelemetry
// instruments and serves them for Prometheus.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/jarredhawkins/drl-lsp/internal/cache"
)

const (
	metricCacheHits      = "drl.cache.hits"
	metricCacheMisses    = "drl.cache.misses"
	metricCacheEntries   = "drl.cache.entries"
	metricCacheSize      = "drl.cache.size"
	metricCacheEvictions = "drl.cache.evictions"
)

// CacheStatsProvider exposes a snapshot of the cache counters.
type CacheStatsProvider interface {
	Metrics() cache.Metrics
}

// CacheMetrics reports cache counters as observable gauges.
type CacheMetrics struct {
	provider  CacheStatsProvider
	hits      metric.Int64ObservableGauge
	misses    metric.Int64ObservableGauge
	entries   metric.Int64ObservableGauge
	size      metric.Int64ObservableGauge
	evictions metric.Int64ObservableGauge
}

// NewCacheMetrics registers the cache gauges on mt. Values are read from
// provider on each collection cycle.
func NewCacheMetrics(mt metric.Meter, provider CacheStatsProvider) (*CacheMetrics, error) {
	cm := &CacheMetrics{provider: provider}

	gauges := []struct {
		dst  *metric.Int64ObservableGauge
		name string
		desc string
		unit string
	}{
		{&cm.hits, metricCacheHits, "Parse cache hit count", "{hit}"},
		{&cm.misses, metricCacheMisses, "Parse cache miss count", "{miss}"},
		{&cm.entries, metricCacheEntries, "Live parse cache entries", "{entry}"},
		{&cm.size, metricCacheSize, "Estimated size of cached results", "By"},
		{&cm.evictions, metricCacheEvictions, "Entries evicted to stay within the size budget", "{entry}"},
	}

	instruments := make([]metric.Observable, 0, len(gauges))
	for _, g := range gauges {
		gauge, err := mt.Int64ObservableGauge(g.name,
			metric.WithDescription(g.desc),
			metric.WithUnit(g.unit),
		)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", g.name, err)
		}
		*g.dst = gauge
		instruments = append(instruments, gauge)
	}

	_, err := mt.RegisterCallback(cm.observe, instruments...)
	if err != nil {
		return nil, fmt.Errorf("register cache metrics callback: %w", err)
	}

	return cm, nil
}

// observe reads the cache counters and reports them to the OTel observer.
func (cm *CacheMetrics) observe(_ context.Context, obs metric.Observer) error {
	m := cm.provider.Metrics()

	obs.ObserveInt64(cm.hits, m.Hits)
	obs.ObserveInt64(cm.misses, m.Misses)
	obs.ObserveInt64(cm.entries, int64(m.Entries))
	obs.ObserveInt64(cm.size, m.Size)
	obs.ObserveInt64(cm.evictions, m.Evictions)

	return nil
}

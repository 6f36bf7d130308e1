package automap

import (
	"go.opentelemetry.io/otel/metric"

	"unshub/internal/telemetry"
)

// autoMapperMetrics are the OTel instruments of the auto-mapper. With
// telemetry disabled the global provider is a no-op, so recording is free.
type autoMapperMetrics struct {
	hits      metric.Int64Counter
	misses    metric.Int64Counter
	cacheSize metric.Int64Gauge
}

func newAutoMapperMetrics() *autoMapperMetrics {
	m := telemetry.Meter("automap")
	hits, _ := m.Int64Counter("unshub.automap.cache_hits",
		metric.WithDescription("Lookups answered from the memoized results of the current generation"),
	)
	misses, _ := m.Int64Counter("unshub.automap.cache_misses",
		metric.WithDescription("Lookups that ran a full suffix search"),
	)
	cacheSize, _ := m.Int64Gauge("unshub.automap.cache_size",
		metric.WithDescription("Flattened namespace paths in the current cache generation"),
	)
	return &autoMapperMetrics{hits: hits, misses: misses, cacheSize: cacheSize}
}

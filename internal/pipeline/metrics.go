package pipeline

import (
	"go.opentelemetry.io/otel/metric"

	"unshub/internal/telemetry"
)

// pipelineMetrics are the OTel instruments of the ingestion pipeline. With
// telemetry disabled the global provider is a no-op, so recording is free.
type pipelineMetrics struct {
	ingested   metric.Int64Counter
	dropped    metric.Int64Counter
	batches    metric.Int64Counter
	retries    metric.Int64Counter
	failures   metric.Int64Counter
	topics     metric.Int64Counter
	queueDepth metric.Int64Gauge
}

func newPipelineMetrics() *pipelineMetrics {
	m := telemetry.Meter("pipeline")
	ingested, _ := m.Int64Counter("unshub.pipeline.ingested",
		metric.WithDescription("Datapoints accepted into the ingestion queue"),
	)
	dropped, _ := m.Int64Counter("unshub.pipeline.dropped",
		metric.WithDescription("Datapoints dropped by overflow, drain timeout or batch failure"),
	)
	batches, _ := m.Int64Counter("unshub.pipeline.batches",
		metric.WithDescription("Batches written to realtime storage"),
	)
	retries, _ := m.Int64Counter("unshub.pipeline.retries",
		metric.WithDescription("Retryable storage failures that triggered a backoff"),
	)
	failures, _ := m.Int64Counter("unshub.pipeline.failures",
		metric.WithDescription("Batches abandoned after a fatal or exhausted storage error"),
	)
	topics, _ := m.Int64Counter("unshub.pipeline.topics_discovered",
		metric.WithDescription("Topics discovered and announced"),
	)
	queueDepth, _ := m.Int64Gauge("unshub.pipeline.queue_depth",
		metric.WithDescription("Ingestion queue depth sampled at each flush"),
	)
	return &pipelineMetrics{
		ingested:   ingested,
		dropped:    dropped,
		batches:    batches,
		retries:    retries,
		failures:   failures,
		topics:     topics,
		queueDepth: queueDepth,
	}
}

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"unshub/internal/api"
	"unshub/internal/config"
	"unshub/internal/events"
	"unshub/internal/storage"
	"unshub/pkg/logging"
)

const (
	// topicQueueCapacity bounds the discovery queue. A full queue defers a
	// topic's discovery to a later datapoint instead of losing it: the topic
	// is only marked known after a successful enqueue.
	topicQueueCapacity = 1024

	// discoveryChunkSize is the most discoveries the topic task persists and
	// announces in one sweep of its queue.
	discoveryChunkSize = 50

	// dropLogEvery rate-limits the queue-overflow warning; the first drop
	// and every dropLogEvery-th after it are logged.
	dropLogEvery = 1000

	// eventSource names this component in the events it publishes.
	eventSource = "ingestion-pipeline"
)

// counters back the Stats snapshot. They are process-local; the OTel
// instruments in metrics.go carry the same figures to the exporter.
type counters struct {
	ingested         atomic.Int64
	dropped          atomic.Int64
	batchesWritten   atomic.Int64
	batchesRetried   atomic.Int64
	batchesFailed    atomic.Int64
	topicsDiscovered atomic.Int64
}

// Pipeline is the ingestion service. It implements api.PipelineHandler and
// services.Service.
type Pipeline struct {
	realtime   storage.RealtimeStorage
	historical storage.HistoricalStorage
	topics     storage.TopicConfigurationRepository
	bus        *events.Bus
	cfg        config.PipelineConfig

	dataQueue     chan api.DataPoint
	newTopicQueue chan topicDiscovery

	// verified holds the snapshot of verified topic names the batcher
	// partitions against. Refreshed periodically, swapped atomically.
	verified atomic.Pointer[map[string]struct{}]

	// mu guards known, announced and pendingUpdates. It is never held
	// across a storage or bus call.
	mu             sync.Mutex
	known          map[string]struct{}
	announced      map[string]struct{}
	pendingUpdates map[string]api.DataPoint

	// sub, quit, group and opCancel are touched only from Start and Stop,
	// which the lifecycle registry never runs concurrently.
	sub      *events.Subscription
	quit     chan struct{}
	group    *errgroup.Group
	opCancel context.CancelFunc

	counters counters
	metrics  *pipelineMetrics
}

// New creates an ingestion pipeline over the given stores. Zero or negative
// tunables fall back to the documented defaults.
func New(realtime storage.RealtimeStorage, historical storage.HistoricalStorage, topics storage.TopicConfigurationRepository, bus *events.Bus, cfg config.PipelineConfig) *Pipeline {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 100000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = config.Duration(500 * time.Millisecond)
	}
	if cfg.PublishLimit <= 0 {
		cfg.PublishLimit = 50
	}
	if cfg.VerifiedRefreshInterval <= 0 {
		cfg.VerifiedRefreshInterval = config.Duration(5 * time.Minute)
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = config.Duration(6 * time.Hour)
	}
	if cfg.RealtimeRetention <= 0 {
		cfg.RealtimeRetention = config.Duration(24 * time.Hour)
	}
	if cfg.HistoricalRetention <= 0 {
		cfg.HistoricalRetention = config.Duration(720 * time.Hour)
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = config.Duration(100 * time.Millisecond)
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = config.Duration(10 * time.Second)
	}

	p := &Pipeline{
		realtime:       realtime,
		historical:     historical,
		topics:         topics,
		bus:            bus,
		cfg:            cfg,
		dataQueue:      make(chan api.DataPoint, cfg.QueueCapacity),
		newTopicQueue:  make(chan topicDiscovery, topicQueueCapacity),
		known:          make(map[string]struct{}),
		announced:      make(map[string]struct{}),
		pendingUpdates: make(map[string]api.DataPoint),
		metrics:        newPipelineMetrics(),
	}
	empty := make(map[string]struct{})
	p.verified.Store(&empty)
	return p
}

// Name implements services.Service.
func (p *Pipeline) Name() string {
	return "ingestion-pipeline"
}

// Start warms the verified-topics snapshot, launches the batcher, the topic
// task and the maintenance loop, and subscribes to DataReceived. The
// pipeline must be started before any producer so no early datapoint is
// missed.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.quit != nil {
		return fmt.Errorf("ingestion pipeline already started")
	}
	p.refreshVerified(ctx)

	opCtx, cancel := context.WithCancel(context.Background())
	p.opCancel = cancel
	p.quit = make(chan struct{})

	p.group = &errgroup.Group{}
	p.group.Go(func() error { return p.runBatcher(opCtx) })
	p.group.Go(func() error { return p.runTopicTask(opCtx) })
	p.group.Go(func() error { return p.runMaintenance(opCtx) })

	p.sub = events.Subscribe(p.bus, func(evt events.DataReceived) {
		p.Enqueue(evt.DataPoint)
	})

	logging.Info("Pipeline", "Ingestion pipeline started, QueueCapacity=%d BatchSize=%d FlushInterval=%s",
		cap(p.dataQueue), p.cfg.BatchSize, p.cfg.FlushInterval)
	return nil
}

// Stop unsubscribes from the bus, signals the loops and waits for them to
// drain both queues. Each drain is bounded by the configured drain timeout;
// whatever remains afterwards is dropped with a count log. An expired ctx
// force-aborts in-flight storage calls.
func (p *Pipeline) Stop(ctx context.Context) error {
	if p.quit == nil {
		return nil
	}
	if p.sub != nil {
		p.sub.Cancel()
		p.sub = nil
	}
	close(p.quit)

	finished := make(chan error, 1)
	go func() { finished <- p.group.Wait() }()

	var err error
	select {
	case err = <-finished:
	case <-ctx.Done():
		p.opCancel()
		err = <-finished
	}
	p.opCancel()
	p.quit = nil

	logging.Info("Pipeline", "Ingestion pipeline stopped, Ingested=%d Dropped=%d BatchesWritten=%d",
		p.counters.ingested.Load(), p.counters.dropped.Load(), p.counters.batchesWritten.Load())
	return err
}

// Enqueue offers a datapoint to the ingestion queue without blocking. False
// means the datapoint was dropped, either for having no topic or because
// the queue was full.
func (p *Pipeline) Enqueue(dp api.DataPoint) bool {
	if dp.Topic == "" {
		logging.Warn("Pipeline", "Dropping datapoint without topic from %s", dp.Source)
		return false
	}
	select {
	case p.dataQueue <- dp:
		p.counters.ingested.Add(1)
		p.metrics.ingested.Add(context.Background(), 1)
		return true
	default:
		dropped := p.counters.dropped.Add(1)
		p.metrics.dropped.Add(context.Background(), 1)
		if dropped == 1 || dropped%dropLogEvery == 0 {
			logging.Warn("Pipeline", "Ingestion queue full, dropping datapoint, Topic=%s DroppedTotal=%d", dp.Topic, dropped)
		}
		return false
	}
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() api.PipelineStats {
	return api.PipelineStats{
		Ingested:         p.counters.ingested.Load(),
		Dropped:          p.counters.dropped.Load(),
		BatchesWritten:   p.counters.batchesWritten.Load(),
		BatchesRetried:   p.counters.batchesRetried.Load(),
		BatchesFailed:    p.counters.batchesFailed.Load(),
		TopicsDiscovered: p.counters.topicsDiscovered.Load(),
		QueueSize:        len(p.dataQueue),
	}
}

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"unshub/internal/api"
	"unshub/internal/events"
	"unshub/internal/storage"
	"unshub/pkg/logging"
)

// datapointStore is the write surface shared by realtime and historical
// storage. The batcher upgrades it to storage.BatchStorer when the backend
// offers one.
type datapointStore interface {
	Store(ctx context.Context, dp api.DataPoint) error
}

// runBatcher is the single consumer of dataQueue. It flushes on size or on
// the flush interval, whichever comes first, and keeps folding out pending
// topic updates on idle ticks.
func (p *Pipeline) runBatcher(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.FlushInterval.Duration())
	defer ticker.Stop()

	batch := make([]api.DataPoint, 0, p.cfg.BatchSize)
	for {
		select {
		case dp := <-p.dataQueue:
			batch = append(batch, dp)
			if len(batch) >= p.cfg.BatchSize {
				p.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				p.flush(ctx, batch)
				batch = batch[:0]
			} else {
				p.publishUpdates()
			}
		case <-p.quit:
			err := p.drainData(ctx, batch)
			// The batcher is the only writer of newTopicQueue; closing it
			// here lets the topic task finish its own drain deterministically.
			close(p.newTopicQueue)
			return err
		}
	}
}

// drainData empties dataQueue under the drain deadline, flushing as it goes.
// Datapoints still queued when the deadline hits are dropped and counted.
func (p *Pipeline) drainData(ctx context.Context, batch []api.DataPoint) error {
	drainCtx, cancel := context.WithTimeout(ctx, p.cfg.DrainTimeout.Duration())
	defer cancel()

	drained := 0
	for {
		if drainCtx.Err() != nil {
			break
		}
		select {
		case dp := <-p.dataQueue:
			batch = append(batch, dp)
			drained++
			if len(batch) >= p.cfg.BatchSize {
				p.flush(drainCtx, batch)
				batch = batch[:0]
			}
		case <-drainCtx.Done():
		default:
			if len(batch) > 0 {
				p.flush(drainCtx, batch)
			}
			p.publishUpdates()
			if drained > 0 {
				logging.Info("Pipeline", "Ingestion queue drained, Flushed=%d", drained)
			}
			return nil
		}
	}

	remaining := len(p.dataQueue) + len(batch)
	if remaining == 0 {
		return nil
	}
	p.counters.dropped.Add(int64(remaining))
	p.metrics.dropped.Add(context.Background(), int64(remaining))
	logging.Warn("Pipeline", "Ingestion drain timed out, Dropped=%d", remaining)
	return fmt.Errorf("ingestion drain timed out with %d datapoints dropped", remaining)
}

// flush writes the batch to realtime storage, then its verified subset to
// historical storage, then records discoveries and publishes folded topic
// updates. A realtime failure drops the whole batch so historical storage
// never runs ahead of realtime.
func (p *Pipeline) flush(ctx context.Context, batch []api.DataPoint) {
	verified := *p.verified.Load()
	var verifiedPts []api.DataPoint
	for _, dp := range batch {
		if _, ok := verified[dp.Topic]; ok {
			verifiedPts = append(verifiedPts, dp)
		}
	}

	if err := p.storeBatch(ctx, p.realtime, batch); err != nil {
		p.counters.batchesFailed.Add(1)
		p.counters.dropped.Add(int64(len(batch)))
		p.metrics.failures.Add(ctx, 1)
		p.metrics.dropped.Add(ctx, int64(len(batch)))
		logging.Error("Pipeline", err, "Dropping batch of %d datapoints after realtime store failure", len(batch))
		return
	}
	p.counters.batchesWritten.Add(1)
	p.metrics.batches.Add(ctx, 1)

	if len(verifiedPts) > 0 {
		if err := p.storeBatch(ctx, p.historical, verifiedPts); err != nil {
			p.counters.batchesFailed.Add(1)
			p.metrics.failures.Add(ctx, 1)
			logging.Error("Pipeline", err, "Failed to store %d verified datapoints historically", len(verifiedPts))
		}
	}

	p.recordBatch(batch)
	p.publishUpdates()
	p.metrics.queueDepth.Record(ctx, int64(len(p.dataQueue)))
}

// storeBatch writes the datapoints through the store's BatchStorer
// capability when it has one, else item by item resuming where the last
// attempt stopped. Retryable failures back off exponentially up to the
// configured attempt limit; anything else aborts immediately.
func (p *Pipeline) storeBatch(ctx context.Context, store datapointStore, dps []api.DataPoint) error {
	classify := func(err error) error {
		if err == nil {
			return nil
		}
		if storage.IsRetryable(err) {
			p.counters.batchesRetried.Add(1)
			p.metrics.retries.Add(ctx, 1)
			return err
		}
		return backoff.Permanent(err)
	}

	batcher, hasBatch := store.(storage.BatchStorer)
	next := 0
	op := func() error {
		if hasBatch {
			return classify(batcher.StoreBatch(ctx, dps))
		}
		for next < len(dps) {
			if err := store.Store(ctx, dps[next]); err != nil {
				return classify(err)
			}
			next++
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.RetryBaseDelay.Duration()
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.cfg.MaxRetries)), ctx))
}

// recordBatch registers unseen topics for discovery and folds the batch
// into the pending update set, keeping the latest datapoint per topic.
func (p *Pipeline) recordBatch(batch []api.DataPoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, dp := range batch {
		if _, seen := p.known[dp.Topic]; !seen {
			d := topicDiscovery{
				topic:      dp.Topic,
				sourceType: dp.Source,
				firstSeen:  dp.Timestamp,
			}
			select {
			case p.newTopicQueue <- d:
				p.known[dp.Topic] = struct{}{}
			default:
				// Discovery queue full; a later datapoint on this topic
				// re-attempts the discovery.
			}
		}
		if cur, ok := p.pendingUpdates[dp.Topic]; !ok || !dp.Timestamp.Before(cur.Timestamp) {
			p.pendingUpdates[dp.Topic] = dp
		}
	}
}

// publishUpdates publishes TopicDataUpdated for up to PublishLimit pending
// topics whose TopicAdded is already out. The rest stays folded, so a burst
// across many topics is spread over several flushes.
func (p *Pipeline) publishUpdates() {
	p.mu.Lock()
	updates := make([]api.DataPoint, 0, p.cfg.PublishLimit)
	for topic, dp := range p.pendingUpdates {
		if len(updates) >= p.cfg.PublishLimit {
			break
		}
		if _, ok := p.announced[topic]; !ok {
			continue
		}
		delete(p.pendingUpdates, topic)
		updates = append(updates, dp)
	}
	p.mu.Unlock()

	for _, dp := range updates {
		p.bus.Publish(events.TopicDataUpdated{Topic: dp.Topic, DataPoint: dp, Source: eventSource})
	}
}
